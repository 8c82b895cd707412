package leads

import (
	"errors"

	"gorm.io/gorm"

	"github.com/autohaul/autohaul-api/internal/types"
)

type Database struct {
	db *gorm.DB
}

func NewDatabase(db *gorm.DB) *Database {
	return &Database{db: db}
}

// ListFilter narrows and pages lead listings. A nil CreatedBy means no
// owner scoping (admin view).
type ListFilter struct {
	CreatedBy *uint
	OriginZip string
	Limit     int
	Offset    int
}

func (d *Database) CreateLead(lead *types.Lead) error {
	return d.db.Create(lead).Error
}

func (d *Database) GetLead(id uint) (*types.Lead, error) {
	var lead types.Lead
	if err := d.db.First(&lead, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &lead, nil
}

func (d *Database) ListLeads(filter ListFilter) ([]types.Lead, error) {
	q := d.db.Model(&types.Lead{})

	if filter.CreatedBy != nil {
		q = q.Where("created_by = ?", *filter.CreatedBy)
	}
	if filter.OriginZip != "" {
		q = q.Where("origin_zip = ?", filter.OriginZip)
	}

	var leads []types.Lead
	if err := q.Limit(filter.Limit).Offset(filter.Offset).Order("id").Find(&leads).Error; err != nil {
		return nil, err
	}
	return leads, nil
}

func (d *Database) UpdateLead(lead *types.Lead) error {
	return d.db.Save(lead).Error
}

func (d *Database) DeleteLead(lead *types.Lead) error {
	return d.db.Delete(lead).Error
}
