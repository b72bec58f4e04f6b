package services

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/example/aquaspa/internal/models"
)

// SectionStore persists the four section kinds. Every operation works on a
// single kind; the footer record is the only place the kinds meet.
type SectionStore struct {
	db *gorm.DB
}

// NewSectionStore constructs a SectionStore.
func NewSectionStore(db *gorm.DB) *SectionStore {
	return &SectionStore{db: db}
}

// WithTx returns a store bound to the given transaction.
func (s *SectionStore) WithTx(tx *gorm.DB) *SectionStore {
	return &SectionStore{db: tx}
}

// CreateFollowLinks bulk-inserts the items and returns their IDs in input order.
func (s *SectionStore) CreateFollowLinks(ctx context.Context, items []models.FollowLink) (models.IDList, error) {
	if len(items) == 0 {
		return models.IDList{}, nil
	}
	if err := s.db.WithContext(ctx).Create(&items).Error; err != nil {
		return nil, err
	}
	ids := make(models.IDList, len(items))
	for i := range items {
		ids[i] = items[i].ID.String()
	}
	return ids, nil
}

// FollowLinksByIDs loads records and returns them in the order of ids.
func (s *SectionStore) FollowLinksByIDs(ctx context.Context, ids models.IDList) ([]models.FollowLink, error) {
	result := []models.FollowLink{}
	if len(ids) == 0 {
		return result, nil
	}
	var rows []models.FollowLink
	if err := s.db.WithContext(ctx).Find(&rows, "id IN ?", parseIDs(ids)).Error; err != nil {
		return nil, err
	}
	byID := make(map[string]models.FollowLink, len(rows))
	for _, row := range rows {
		byID[row.ID.String()] = row
	}
	for _, id := range ids {
		if row, ok := byID[id]; ok {
			result = append(result, row)
		}
	}
	return result, nil
}

// DeleteFollowLinks removes records by ID.
func (s *SectionStore) DeleteFollowLinks(ctx context.Context, ids models.IDList) error {
	if len(ids) == 0 {
		return nil
	}
	return s.db.WithContext(ctx).Delete(&models.FollowLink{}, "id IN ?", parseIDs(ids)).Error
}

// CreatePageLinks bulk-inserts the items and returns their IDs in input order.
func (s *SectionStore) CreatePageLinks(ctx context.Context, items []models.PageLink) (models.IDList, error) {
	if len(items) == 0 {
		return models.IDList{}, nil
	}
	if err := s.db.WithContext(ctx).Create(&items).Error; err != nil {
		return nil, err
	}
	ids := make(models.IDList, len(items))
	for i := range items {
		ids[i] = items[i].ID.String()
	}
	return ids, nil
}

// PageLinksByIDs loads records and returns them in the order of ids.
func (s *SectionStore) PageLinksByIDs(ctx context.Context, ids models.IDList) ([]models.PageLink, error) {
	result := []models.PageLink{}
	if len(ids) == 0 {
		return result, nil
	}
	var rows []models.PageLink
	if err := s.db.WithContext(ctx).Find(&rows, "id IN ?", parseIDs(ids)).Error; err != nil {
		return nil, err
	}
	byID := make(map[string]models.PageLink, len(rows))
	for _, row := range rows {
		byID[row.ID.String()] = row
	}
	for _, id := range ids {
		if row, ok := byID[id]; ok {
			result = append(result, row)
		}
	}
	return result, nil
}

// DeletePageLinks removes records by ID.
func (s *SectionStore) DeletePageLinks(ctx context.Context, ids models.IDList) error {
	if len(ids) == 0 {
		return nil
	}
	return s.db.WithContext(ctx).Delete(&models.PageLink{}, "id IN ?", parseIDs(ids)).Error
}

// CreateOtherTextBlocks bulk-inserts the items and returns their IDs in input order.
func (s *SectionStore) CreateOtherTextBlocks(ctx context.Context, items []models.OtherTextBlock) (models.IDList, error) {
	if len(items) == 0 {
		return models.IDList{}, nil
	}
	if err := s.db.WithContext(ctx).Create(&items).Error; err != nil {
		return nil, err
	}
	ids := make(models.IDList, len(items))
	for i := range items {
		ids[i] = items[i].ID.String()
	}
	return ids, nil
}

// OtherTextBlocksByIDs loads records and returns them in the order of ids.
func (s *SectionStore) OtherTextBlocksByIDs(ctx context.Context, ids models.IDList) ([]models.OtherTextBlock, error) {
	result := []models.OtherTextBlock{}
	if len(ids) == 0 {
		return result, nil
	}
	var rows []models.OtherTextBlock
	if err := s.db.WithContext(ctx).Find(&rows, "id IN ?", parseIDs(ids)).Error; err != nil {
		return nil, err
	}
	byID := make(map[string]models.OtherTextBlock, len(rows))
	for _, row := range rows {
		byID[row.ID.String()] = row
	}
	for _, id := range ids {
		if row, ok := byID[id]; ok {
			result = append(result, row)
		}
	}
	return result, nil
}

// DeleteOtherTextBlocks removes records by ID.
func (s *SectionStore) DeleteOtherTextBlocks(ctx context.Context, ids models.IDList) error {
	if len(ids) == 0 {
		return nil
	}
	return s.db.WithContext(ctx).Delete(&models.OtherTextBlock{}, "id IN ?", parseIDs(ids)).Error
}

// AccordionGroupsByIDs loads records and returns them in the order of ids.
func (s *SectionStore) AccordionGroupsByIDs(ctx context.Context, ids models.IDList) ([]models.AccordionGroup, error) {
	result := []models.AccordionGroup{}
	if len(ids) == 0 {
		return result, nil
	}
	var rows []models.AccordionGroup
	if err := s.db.WithContext(ctx).Find(&rows, "id IN ?", parseIDs(ids)).Error; err != nil {
		return nil, err
	}
	byID := make(map[string]models.AccordionGroup, len(rows))
	for _, row := range rows {
		byID[row.ID.String()] = row
	}
	for _, id := range ids {
		if row, ok := byID[id]; ok {
			result = append(result, row)
		}
	}
	return result, nil
}

// CreateAccordionGroup inserts a fresh group and returns its ID.
func (s *SectionStore) CreateAccordionGroup(ctx context.Context, group models.AccordionGroup) (string, error) {
	if err := s.db.WithContext(ctx).Create(&group).Error; err != nil {
		return "", err
	}
	return group.ID.String(), nil
}

// UpsertAccordionGroup replaces the content of the group currently referenced
// by the footer, or inserts a fresh group when none is referenced yet. The
// returned ID is the surviving group's identity.
func (s *SectionStore) UpsertAccordionGroup(ctx context.Context, currentIDs models.IDList, mainTitle string, items models.AccordionItemList) (string, error) {
	if len(currentIDs) > 0 {
		var existing models.AccordionGroup
		err := s.db.WithContext(ctx).First(&existing, "id IN ?", parseIDs(currentIDs)).Error
		if err == nil {
			existing.MainTitle = mainTitle
			existing.Items = items
			if err := s.db.WithContext(ctx).Save(&existing).Error; err != nil {
				return "", err
			}
			return existing.ID.String(), nil
		}
		if err != gorm.ErrRecordNotFound {
			return "", err
		}
	}

	group := models.AccordionGroup{MainTitle: mainTitle, Items: items}
	if err := s.db.WithContext(ctx).Create(&group).Error; err != nil {
		return "", err
	}
	return group.ID.String(), nil
}

// DeleteAccordionGroups removes records by ID.
func (s *SectionStore) DeleteAccordionGroups(ctx context.Context, ids models.IDList) error {
	if len(ids) == 0 {
		return nil
	}
	return s.db.WithContext(ctx).Delete(&models.AccordionGroup{}, "id IN ?", parseIDs(ids)).Error
}

// AllFollowLinks loads every stored record, used by the orphan sweep.
func (s *SectionStore) AllFollowLinks(ctx context.Context) ([]models.FollowLink, error) {
	var rows []models.FollowLink
	err := s.db.WithContext(ctx).Find(&rows).Error
	return rows, err
}

// AllPageLinks loads every stored record, used by the orphan sweep.
func (s *SectionStore) AllPageLinks(ctx context.Context) ([]models.PageLink, error) {
	var rows []models.PageLink
	err := s.db.WithContext(ctx).Find(&rows).Error
	return rows, err
}

// AllAccordionGroups loads every stored record, used by the orphan sweep.
func (s *SectionStore) AllAccordionGroups(ctx context.Context) ([]models.AccordionGroup, error) {
	var rows []models.AccordionGroup
	err := s.db.WithContext(ctx).Find(&rows).Error
	return rows, err
}

// AllOtherTextBlocks loads every stored record, used by the orphan sweep.
func (s *SectionStore) AllOtherTextBlocks(ctx context.Context) ([]models.OtherTextBlock, error) {
	var rows []models.OtherTextBlock
	err := s.db.WithContext(ctx).Find(&rows).Error
	return rows, err
}

func parseIDs(values models.IDList) []uuid.UUID {
	ids := make([]uuid.UUID, 0, len(values))
	for _, value := range values {
		if value == "" {
			continue
		}
		if id, err := uuid.Parse(value); err == nil {
			ids = append(ids, id)
		}
	}
	return ids
}
