package scan

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/neurodash/neurodash/internal/analysis"
	"github.com/neurodash/neurodash/internal/platform/db"
)

type repoPG struct {
	pool *pgxpool.Pool
}

func NewRepo(pool *pgxpool.Pool) Repository {
	return &repoPG{pool: pool}
}

type querier interface {
	Exec(ctx context.Context, sql string, args ...interface{}) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...interface{}) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...interface{}) pgx.Row
}

func (r *repoPG) conn(ctx context.Context) querier {
	if tx := db.TxFromContext(ctx); tx != nil {
		return tx
	}
	if c := db.ConnFromContext(ctx); c != nil {
		return c
	}
	return r.pool
}

const sessCols = `id, session_code, patient_id, doctor_id, analysis_type, status,
	file_name, notes, error_detail, created_at, updated_at, completed_at`

func (r *repoPG) Create(ctx context.Context, sess *Session) error {
	if sess.ID == uuid.Nil {
		sess.ID = uuid.New()
	}
	_, err := r.conn(ctx).Exec(ctx, `
		INSERT INTO mri_sessions (
			id, session_code, patient_id, doctor_id, analysis_type, status,
			file_name, notes
		) VALUES ($1,$2,$3,$4,$5,$6,$7,$8)`,
		sess.ID, sess.SessionCode, sess.PatientID, sess.DoctorID, sess.AnalysisType, sess.Status,
		sess.FileName, sess.Notes,
	)
	return err
}

func (r *repoPG) GetByID(ctx context.Context, id uuid.UUID) (*Session, error) {
	return scanSession(r.conn(ctx).QueryRow(ctx, `SELECT `+sessCols+` FROM mri_sessions WHERE id = $1`, id))
}

func (r *repoPG) GetByCode(ctx context.Context, code string) (*Session, error) {
	return scanSession(r.conn(ctx).QueryRow(ctx, `SELECT `+sessCols+` FROM mri_sessions WHERE session_code = $1`, code))
}

func (r *repoPG) GetStatus(ctx context.Context, id uuid.UUID) (analysis.Status, error) {
	var status analysis.Status
	err := r.conn(ctx).QueryRow(ctx, `SELECT status FROM mri_sessions WHERE id = $1`, id).Scan(&status)
	return status, err
}

func (r *repoPG) UpdateStatus(ctx context.Context, id uuid.UUID, status analysis.Status, errorDetail string) error {
	_, err := r.conn(ctx).Exec(ctx, `
		UPDATE mri_sessions SET
			status = $2,
			error_detail = $3,
			completed_at = CASE WHEN $2 IN ('completed','failed') THEN NOW() ELSE completed_at END,
			updated_at = NOW()
		WHERE id = $1`,
		id, status, errorDetail,
	)
	return err
}

func (r *repoPG) UpdateNotes(ctx context.Context, id uuid.UUID, notes string) error {
	_, err := r.conn(ctx).Exec(ctx, `UPDATE mri_sessions SET notes = $2, updated_at = NOW() WHERE id = $1`, id, notes)
	return err
}

func (r *repoPG) Delete(ctx context.Context, id uuid.UUID) error {
	_, err := r.conn(ctx).Exec(ctx, `DELETE FROM mri_sessions WHERE id = $1`, id)
	return err
}

func (r *repoPG) List(ctx context.Context, limit, offset int) ([]*Session, int, error) {
	var total int
	if err := r.conn(ctx).QueryRow(ctx, `SELECT COUNT(*) FROM mri_sessions`).Scan(&total); err != nil {
		return nil, 0, err
	}
	rows, err := r.conn(ctx).Query(ctx, `SELECT `+sessCols+` FROM mri_sessions ORDER BY created_at DESC LIMIT $1 OFFSET $2`, limit, offset)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()
	return collectSessions(rows, total)
}

func (r *repoPG) ListByPatient(ctx context.Context, patientID uuid.UUID, limit, offset int) ([]*Session, int, error) {
	var total int
	if err := r.conn(ctx).QueryRow(ctx, `SELECT COUNT(*) FROM mri_sessions WHERE patient_id = $1`, patientID).Scan(&total); err != nil {
		return nil, 0, err
	}
	rows, err := r.conn(ctx).Query(ctx,
		`SELECT `+sessCols+` FROM mri_sessions WHERE patient_id = $1 ORDER BY created_at DESC LIMIT $2 OFFSET $3`,
		patientID, limit, offset)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()
	return collectSessions(rows, total)
}

func (r *repoPG) ListByDoctor(ctx context.Context, doctorID uuid.UUID, limit, offset int) ([]*Session, int, error) {
	var total int
	if err := r.conn(ctx).QueryRow(ctx, `SELECT COUNT(*) FROM mri_sessions WHERE doctor_id = $1`, doctorID).Scan(&total); err != nil {
		return nil, 0, err
	}
	rows, err := r.conn(ctx).Query(ctx,
		`SELECT `+sessCols+` FROM mri_sessions WHERE doctor_id = $1 ORDER BY created_at DESC LIMIT $2 OFFSET $3`,
		doctorID, limit, offset)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()
	return collectSessions(rows, total)
}

const predCols = `id, session_id, prediction, confidence_score, probabilities,
	brain_volume, gm_volume, wm_volume, csf_volume, hippocampal_volume, ventricular_volume,
	model_version, processing_time, created_at`

func (r *repoPG) CreatePrediction(ctx context.Context, p *Prediction) error {
	if p.ID == uuid.Nil {
		p.ID = uuid.New()
	}
	_, err := r.conn(ctx).Exec(ctx, `
		INSERT INTO mri_predictions (
			id, session_id, prediction, confidence_score, probabilities,
			brain_volume, gm_volume, wm_volume, csf_volume, hippocampal_volume, ventricular_volume,
			model_version, processing_time
		) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13)`,
		p.ID, p.SessionID, p.Prediction, p.ConfidenceScore, p.Probabilities,
		p.BrainVolume, p.GMVolume, p.WMVolume, p.CSFVolume, p.HippocampalVolume, p.VentricularVolume,
		p.ModelVersion, p.ProcessingTime,
	)
	return err
}

func (r *repoPG) RecordResult(ctx context.Context, p *Prediction) error {
	return db.WithTx(ctx, r.pool, func(ctx context.Context) error {
		if err := r.CreatePrediction(ctx, p); err != nil {
			return err
		}
		return r.UpdateStatus(ctx, p.SessionID, analysis.StatusCompleted, "")
	})
}

func (r *repoPG) GetPredictions(ctx context.Context, sessionID uuid.UUID) ([]*Prediction, error) {
	rows, err := r.conn(ctx).Query(ctx,
		`SELECT `+predCols+` FROM mri_predictions WHERE session_id = $1 ORDER BY created_at DESC`, sessionID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var preds []*Prediction
	for rows.Next() {
		var p Prediction
		err := rows.Scan(
			&p.ID, &p.SessionID, &p.Prediction, &p.ConfidenceScore, &p.Probabilities,
			&p.BrainVolume, &p.GMVolume, &p.WMVolume, &p.CSFVolume, &p.HippocampalVolume, &p.VentricularVolume,
			&p.ModelVersion, &p.ProcessingTime, &p.CreatedAt,
		)
		if err != nil {
			return nil, err
		}
		preds = append(preds, &p)
	}
	return preds, nil
}

func scanSession(row pgx.Row) (*Session, error) {
	var s Session
	err := row.Scan(
		&s.ID, &s.SessionCode, &s.PatientID, &s.DoctorID, &s.AnalysisType, &s.Status,
		&s.FileName, &s.Notes, &s.ErrorDetail, &s.CreatedAt, &s.UpdatedAt, &s.CompletedAt,
	)
	if err != nil {
		return nil, err
	}
	return &s, nil
}

func collectSessions(rows pgx.Rows, total int) ([]*Session, int, error) {
	var sessions []*Session
	for rows.Next() {
		var s Session
		err := rows.Scan(
			&s.ID, &s.SessionCode, &s.PatientID, &s.DoctorID, &s.AnalysisType, &s.Status,
			&s.FileName, &s.Notes, &s.ErrorDetail, &s.CreatedAt, &s.UpdatedAt, &s.CompletedAt,
		)
		if err != nil {
			return nil, 0, err
		}
		sessions = append(sessions, &s)
	}
	return sessions, total, nil
}
