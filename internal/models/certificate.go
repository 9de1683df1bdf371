package models

import "time"

// IssuanceStatus tracks the certificate request through the async mint path.
type IssuanceStatus string

const (
	IssuancePending IssuanceStatus = "pending"
	IssuanceMinted  IssuanceStatus = "minted"
	IssuanceFailed  IssuanceStatus = "failed"
)

// CertificateIssuanceRequest is emitted exactly once when an application
// enters approved. The ledger worker consumes it with bounded retries;
// exhaustion parks it in failed for manual intervention.
type CertificateIssuanceRequest struct {
	ID            string         `db:"id" json:"id"`
	ApplicationID string         `db:"application_id" json:"application_id"`
	Metadata      []byte         `db:"certificate_data" json:"certificate_data"`
	Status        IssuanceStatus `db:"status" json:"status"`
	Attempts      int            `db:"attempts" json:"attempts"`
	LastError     *string        `db:"last_error" json:"last_error,omitempty"`
	CreatedAt     time.Time      `db:"created_at" json:"created_at"`
	UpdatedAt     time.Time      `db:"updated_at" json:"updated_at"`
}

// NFTCertificate records the on-chain token minted for an approved application.
type NFTCertificate struct {
	ID            string    `db:"id" json:"id"`
	ApplicationID string    `db:"application_id" json:"application_id"`
	TokenAddress  string    `db:"token_address" json:"token_address"`
	TokenID       string    `db:"token_id" json:"token_id"`
	TxHash        string    `db:"blockchain_tx_hash" json:"blockchain_tx_hash"`
	MetadataURI   *string   `db:"metadata_uri" json:"metadata_uri,omitempty"`
	MintedAt      time.Time `db:"minted_at" json:"minted_at"`
}
