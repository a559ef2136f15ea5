package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/medchain/identity-service/internal/models"
	"gorm.io/gorm"
)

// RoleRepository handles role entity database operations across all eight
// variants, dispatching on the role tag.
type RoleRepository struct {
	db *gorm.DB
}

// NewRoleRepository creates a new role repository
func NewRoleRepository(db *gorm.DB) *RoleRepository {
	return &RoleRepository{db: db}
}

// AssignRole sets the account role and creates the role entity as one
// atomic unit of work. If either write fails neither is committed.
func (r *RoleRepository) AssignRole(ctx context.Context, userID uint, role models.Role, entity models.RoleEntity) error {
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Model(&models.User{}).
			Where("id = ?", userID).Update("role", role).Error; err != nil {
			return fmt.Errorf("failed to assign role: %w", err)
		}
		if err := tx.Create(entity).Error; err != nil {
			return fmt.Errorf("failed to create role entity: %w", err)
		}
		return nil
	})
	if err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return ErrConflict
		}
		return err
	}
	return nil
}

// GetByUserID loads the role entity of the given variant for an account.
func (r *RoleRepository) GetByUserID(ctx context.Context, role models.Role, userID uint) (models.RoleEntity, error) {
	entity, err := models.NewRoleEntity(role)
	if err != nil {
		return nil, err
	}
	if err := r.db.WithContext(ctx).Where("user_id = ?", userID).First(entity).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to get %s entity: %w", role, err)
	}
	return entity, nil
}

// Decide applies an admin decision to a role entity inside a single
// transaction. The update is idempotent: re-applying the same decision
// leaves the row unchanged.
func (r *RoleRepository) Decide(ctx context.Context, role models.Role, userID uint, verified bool, statusEncrypted, descriptionEncrypted string) error {
	prototype, err := models.NewRoleEntity(role)
	if err != nil {
		return err
	}
	// the description always overwrites: approving a previously rejected
	// entity must clear the stale rejection note
	updates := decisionUpdates(verified, statusEncrypted, descriptionEncrypted)

	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Model(prototype).Where("user_id = ?", userID).Updates(updates)
		if res.Error != nil {
			return fmt.Errorf("failed to update %s entity: %w", role, res.Error)
		}
		if res.RowsAffected == 0 {
			return ErrNotFound
		}
		return nil
	})
}

func decisionUpdates(verified bool, statusEncrypted, descriptionEncrypted string) map[string]interface{} {
	return map[string]interface{}{
		"verified":              verified,
		"status_encrypted":      statusEncrypted,
		"description_encrypted": descriptionEncrypted,
	}
}

// CountByVerified tallies entities of a variant by their verified flag.
func (r *RoleRepository) CountByVerified(ctx context.Context, role models.Role, verified bool) (int64, error) {
	prototype, err := models.NewRoleEntity(role)
	if err != nil {
		return 0, err
	}
	var count int64
	q := r.db.WithContext(ctx).Model(prototype)
	if verified {
		q = q.Where("verified = ?", true)
	} else {
		q = q.Where("verified = ? OR verified IS NULL", false)
	}
	if err := q.Count(&count).Error; err != nil {
		return 0, fmt.Errorf("failed to count %s entities: %w", role, err)
	}
	return count, nil
}

// ListByVerified returns entities of a variant filtered by verified flag.
func (r *RoleRepository) ListByVerified(ctx context.Context, role models.Role, verified bool, limit, offset int) ([]models.RoleEntity, error) {
	rows, err := r.listRaw(ctx, role, verified, limit, offset)
	if err != nil {
		return nil, err
	}
	return rows, nil
}

func (r *RoleRepository) listRaw(ctx context.Context, role models.Role, verified bool, limit, offset int) ([]models.RoleEntity, error) {
	q := r.db.WithContext(ctx).Where("verified = ?", verified).Order("submission_date ASC")
	if limit > 0 {
		q = q.Limit(limit)
	}
	if offset > 0 {
		q = q.Offset(offset)
	}

	collect := func(err error, out []models.RoleEntity) ([]models.RoleEntity, error) {
		if err != nil {
			return nil, fmt.Errorf("failed to list %s entities: %w", role, err)
		}
		return out, nil
	}

	switch role {
	case models.RolePatient:
		var rows []models.Patient
		err := q.Find(&rows).Error
		return collect(err, asEntities(rows))
	case models.RoleDoctor:
		var rows []models.Doctor
		err := q.Find(&rows).Error
		return collect(err, asEntities(rows))
	case models.RoleHospital:
		var rows []models.Hospital
		err := q.Find(&rows).Error
		return collect(err, asEntities(rows))
	case models.RoleHospitalAdmin:
		var rows []models.HospitalAdmin
		err := q.Find(&rows).Error
		return collect(err, asEntities(rows))
	case models.RolePharmacy:
		var rows []models.Pharmacy
		err := q.Find(&rows).Error
		return collect(err, asEntities(rows))
	case models.RolePharmacyAdmin:
		var rows []models.PharmacyAdmin
		err := q.Find(&rows).Error
		return collect(err, asEntities(rows))
	case models.RolePharmacist:
		var rows []models.Pharmacist
		err := q.Find(&rows).Error
		return collect(err, asEntities(rows))
	case models.RoleAdmin:
		var rows []models.Admin
		err := q.Find(&rows).Error
		return collect(err, asEntities(rows))
	default:
		return nil, fmt.Errorf("unknown role %q", role)
	}
}

func asEntities[T models.RoleEntity](rows []T) []models.RoleEntity {
	out := make([]models.RoleEntity, len(rows))
	for i := range rows {
		out[i] = rows[i]
	}
	return out
}
