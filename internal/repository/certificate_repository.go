package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/verichain/verichain-api/internal/models"
)

const requestColumns = `id, application_id, certificate_data, status, attempts, last_error, created_at, updated_at`

const certificateColumns = `id, application_id, token_address, token_id, blockchain_tx_hash, metadata_uri, minted_at`

// CertificateRepository persists issuance requests and minted certificates.
type CertificateRepository struct {
	db *sqlx.DB
}

// NewCertificateRepository creates a new certificate repository.
func NewCertificateRepository(db *sqlx.DB) *CertificateRepository {
	return &CertificateRepository{db: db}
}

// InsertRequestTx writes the issuance request inside the approval transaction.
func (r *CertificateRepository) InsertRequestTx(ctx context.Context, tx *sqlx.Tx, req *models.CertificateIssuanceRequest) error {
	if req.ID == "" {
		req.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	req.CreatedAt = now
	req.UpdatedAt = now
	if req.Status == "" {
		req.Status = models.IssuancePending
	}
	const query = `INSERT INTO certificate_requests (id, application_id, certificate_data, status,
            attempts, last_error, created_at, updated_at)
        VALUES (:id, :application_id, :certificate_data, :status, :attempts, :last_error, :created_at, :updated_at)`
	if _, err := tx.NamedExecContext(ctx, query, req); err != nil {
		return fmt.Errorf("insert issuance request: %w", err)
	}
	return nil
}

// FindRequestByApplication loads the issuance request for an application.
func (r *CertificateRepository) FindRequestByApplication(ctx context.Context, applicationID string) (*models.CertificateIssuanceRequest, error) {
	query := fmt.Sprintf("SELECT %s FROM certificate_requests WHERE application_id = $1 LIMIT 1", requestColumns)
	var req models.CertificateIssuanceRequest
	if err := r.db.GetContext(ctx, &req, query, applicationID); err != nil {
		return nil, err
	}
	return &req, nil
}

// ListPendingRequests returns requests awaiting a successful mint, oldest first.
func (r *CertificateRepository) ListPendingRequests(ctx context.Context) ([]models.CertificateIssuanceRequest, error) {
	query := fmt.Sprintf("SELECT %s FROM certificate_requests WHERE status = $1 ORDER BY created_at ASC", requestColumns)
	var reqs []models.CertificateIssuanceRequest
	if err := r.db.SelectContext(ctx, &reqs, query, string(models.IssuancePending)); err != nil {
		return nil, fmt.Errorf("list pending issuance requests: %w", err)
	}
	return reqs, nil
}

// UpdateRequest records the outcome of a mint attempt.
func (r *CertificateRepository) UpdateRequest(ctx context.Context, id string, status models.IssuanceStatus, attempts int, lastError *string) error {
	res, err := r.db.ExecContext(ctx,
		`UPDATE certificate_requests SET status = $1, attempts = $2, last_error = $3, updated_at = $4 WHERE id = $5`,
		string(status), attempts, lastError, time.Now().UTC(), id)
	if err != nil {
		return fmt.Errorf("update issuance request: %w", err)
	}
	if affected, _ := res.RowsAffected(); affected == 0 {
		return ErrNotApplied
	}
	return nil
}

// InsertCertificate stores the minted token reference.
func (r *CertificateRepository) InsertCertificate(ctx context.Context, cert *models.NFTCertificate) error {
	if cert.ID == "" {
		cert.ID = uuid.NewString()
	}
	if cert.MintedAt.IsZero() {
		cert.MintedAt = time.Now().UTC()
	}
	const query = `INSERT INTO nft_certificates (id, application_id, token_address, token_id,
            blockchain_tx_hash, metadata_uri, minted_at)
        VALUES (:id, :application_id, :token_address, :token_id, :blockchain_tx_hash, :metadata_uri, :minted_at)`
	if _, err := r.db.NamedExecContext(ctx, query, cert); err != nil {
		return fmt.Errorf("insert certificate: %w", err)
	}
	return nil
}

// FindCertificateByApplication loads the minted certificate for an application.
func (r *CertificateRepository) FindCertificateByApplication(ctx context.Context, applicationID string) (*models.NFTCertificate, error) {
	query := fmt.Sprintf("SELECT %s FROM nft_certificates WHERE application_id = $1 LIMIT 1", certificateColumns)
	var cert models.NFTCertificate
	if err := r.db.GetContext(ctx, &cert, query, applicationID); err != nil {
		return nil, err
	}
	return &cert, nil
}
