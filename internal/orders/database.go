package orders

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

// ListFilter narrows and pages order listings. A nil CreatedBy means no
// owner scoping (admin view).
type ListFilter struct {
	CreatedBy *uint
	Status    string
	Limit     int
	Offset    int
}

func (d *Database) CreateOrder(order *types.Order) error {
	return d.db.Create(order).Error
}

func (d *Database) GetOrder(id uint) (*types.Order, error) {
	var order types.Order
	if err := d.db.First(&order, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &order, nil
}

func (d *Database) ListOrders(filter ListFilter) ([]types.Order, error) {
	q := d.db.Model(&types.Order{})

	if filter.CreatedBy != nil {
		q = q.Where("created_by = ?", *filter.CreatedBy)
	}
	if filter.Status != "" {
		q = q.Where("status = ?", filter.Status)
	}

	var orders []types.Order
	if err := q.Limit(filter.Limit).Offset(filter.Offset).Order("id").Find(&orders).Error; err != nil {
		return nil, err
	}
	return orders, nil
}

func (d *Database) UpdateOrder(order *types.Order) error {
	return d.db.Save(order).Error
}

func (d *Database) DeleteOrder(order *types.Order) error {
	return d.db.Delete(order).Error
}
