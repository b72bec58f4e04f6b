package services

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
	"gorm.io/gorm"

	"github.com/example/aquaspa/internal/models"
)

// ErrFooterNotFound reports that the referenced footer does not exist.
var ErrFooterNotFound = errors.New("footer not found")

// ValidationError reports a malformed payload. Field is the offending field in
// the client's own naming.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return e.Message
}

func requiredField(field string) *ValidationError {
	return &ValidationError{Field: field, Message: fmt.Sprintf("%q is required", field)}
}

// UploadedFile is an in-memory multipart upload keyed by its field name.
// Icon files arrive as "<section>[<index>][icon]"; the index must match the
// position of the item in the submitted section list.
type UploadedFile struct {
	FieldName string
	Data      []byte
	MimeType  string
}

// FollowLinkInput is one submitted social link.
type FollowLinkInput struct {
	Link string `json:"link"`
}

// PageLinkInput is one submitted page link.
type PageLinkInput struct {
	Name string `json:"name"`
	Link string `json:"link"`
}

// OtherTextInput is one submitted free-form text block.
type OtherTextInput struct {
	Title string `json:"title"`
	Text  string `json:"text"`
}

// AccordionInput is the submitted FAQ block.
type AccordionInput struct {
	MainTitle string                 `json:"mainTitle"`
	Items     []models.AccordionItem `json:"items"`
}

// FooterPayload is the decoded create/update body. An empty section list means
// "leave the stored list alone" on update and "no records" on create.
type FooterPayload struct {
	Status     string            `json:"status"`
	Name       string            `json:"name"`
	FollowUs   []FollowLinkInput `json:"followUs"`
	PageLinks  []PageLinkInput   `json:"pageLinks"`
	Accordians *AccordionInput   `json:"accordians"`
	OtherText  []OtherTextInput  `json:"otherText"`
}

// FooterDetail is a footer with every referenced section loaded.
type FooterDetail struct {
	ID         uuid.UUID               `json:"id"`
	Status     string                  `json:"status"`
	Name       string                  `json:"name"`
	FollowUs   []models.FollowLink     `json:"followUs"`
	PageLinks  []models.PageLink       `json:"pageLinks"`
	Accordians []models.AccordionGroup `json:"accordians"`
	OtherText  []models.OtherTextBlock `json:"otherText"`
}

// FooterService implements footer composition, the single-active-footer
// invariant and the deletion cascade.
type FooterService struct {
	db       *gorm.DB
	sections *SectionStore
	images   ImageStore
}

// NewFooterService constructs a FooterService.
func NewFooterService(db *gorm.DB, sections *SectionStore, images ImageStore) *FooterService {
	return &FooterService{db: db, sections: sections, images: images}
}

// ValidatePayload checks the footer shape and reports the first offending field.
func ValidatePayload(p FooterPayload) error {
	if strings.TrimSpace(p.Status) == "" {
		return requiredField("status")
	}
	if p.Status != models.StatusActive && p.Status != models.StatusInactive {
		return &ValidationError{Field: "status", Message: `"status" must be one of [active, inactive]`}
	}
	if strings.TrimSpace(p.Name) == "" {
		return requiredField("name")
	}
	for i, item := range p.FollowUs {
		if strings.TrimSpace(item.Link) == "" {
			return requiredField(fmt.Sprintf("followUs[%d][link]", i))
		}
	}
	for i, item := range p.PageLinks {
		if strings.TrimSpace(item.Name) == "" {
			return requiredField(fmt.Sprintf("pageLinks[%d][name]", i))
		}
		if strings.TrimSpace(item.Link) == "" {
			return requiredField(fmt.Sprintf("pageLinks[%d][link]", i))
		}
	}
	for i, item := range p.OtherText {
		if strings.TrimSpace(item.Title) == "" {
			return requiredField(fmt.Sprintf("otherText[%d][title]", i))
		}
		if strings.TrimSpace(item.Text) == "" {
			return requiredField(fmt.Sprintf("otherText[%d][text]", i))
		}
	}
	return nil
}

func validateAccordion(a AccordionInput) error {
	if strings.TrimSpace(a.MainTitle) == "" {
		return requiredField("accordians[mainTitle]")
	}
	if a.Items == nil {
		return requiredField("accordians[items]")
	}
	for i, item := range a.Items {
		if strings.TrimSpace(item.Title) == "" {
			return requiredField(fmt.Sprintf("accordians[items][%d][title]", i))
		}
		if strings.TrimSpace(item.Text) == "" {
			return requiredField(fmt.Sprintf("accordians[items][%d][text]", i))
		}
	}
	return nil
}

// ValidateStatus checks a status-transition request body.
func ValidateStatus(status string) error {
	if strings.TrimSpace(status) == "" {
		return requiredField("status")
	}
	if status != models.StatusActive && status != models.StatusInactive {
		return &ValidationError{Field: "status", Message: `"status" must be one of [active, inactive]`}
	}
	return nil
}

// hasAccordion reports whether the payload carries a processable FAQ block.
// A block without a mainTitle or with no items is ignored, matching the
// create/update contract.
func hasAccordion(p FooterPayload) bool {
	return p.Accordians != nil && p.Accordians.MainTitle != "" && len(p.Accordians.Items) > 0
}

// resolveIcons decides the icon for each item position. A file uploaded under
// "<field>[<i>][icon]" wins and is pushed to the image host; otherwise the icon
// stored at the same position before the update is carried over unchanged;
// otherwise the position has no icon. No host call is made for carried or
// absent icons.
func (s *FooterService) resolveIcons(ctx context.Context, files map[string]UploadedFile, field string, count int, existing []*models.Icon) ([]*models.Icon, error) {
	icons := make([]*models.Icon, count)
	for i := 0; i < count; i++ {
		key := fmt.Sprintf("%s[%d][icon]", field, i)
		if file, ok := files[key]; ok {
			icon, err := s.images.Upload(ctx, file.Data, file.MimeType, UploadOptions{})
			if err != nil {
				log.Printf("[Footer] icon upload failed for %s: %v", key, err)
				return nil, errors.New("error processing icon")
			}
			icons[i] = icon
			continue
		}
		if i < len(existing) && existing[i] != nil {
			icons[i] = existing[i]
		}
	}
	return icons, nil
}

func followLinkIcons(items []models.FollowLink) []*models.Icon {
	icons := make([]*models.Icon, len(items))
	for i := range items {
		icons[i] = items[i].Icon
	}
	return icons
}

func otherTextIcons(items []models.OtherTextBlock) []*models.Icon {
	icons := make([]*models.Icon, len(items))
	for i := range items {
		icons[i] = items[i].Icon
	}
	return icons
}

// Create validates the payload, persists every submitted section and then the
// footer referencing them. The three list resolutions run concurrently; the
// accordion is handled after them. Section inserts that completed before a
// later failure are not rolled back.
func (s *FooterService) Create(ctx context.Context, p FooterPayload, files map[string]UploadedFile) (*models.Footer, error) {
	if err := ValidatePayload(p); err != nil {
		return nil, err
	}

	footer := &models.Footer{
		Status:     p.Status,
		Name:       p.Name,
		FollowUs:   models.IDList{},
		PageLinks:  models.IDList{},
		Accordians: models.IDList{},
		OtherText:  models.IDList{},
	}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		if len(p.FollowUs) == 0 {
			return nil
		}
		icons, err := s.resolveIcons(gctx, files, "followUs", len(p.FollowUs), nil)
		if err != nil {
			return err
		}
		items := make([]models.FollowLink, len(p.FollowUs))
		for i, input := range p.FollowUs {
			items[i] = models.FollowLink{Link: input.Link, Icon: icons[i]}
		}
		ids, err := s.sections.CreateFollowLinks(gctx, items)
		if err != nil {
			return err
		}
		footer.FollowUs = ids
		return nil
	})

	g.Go(func() error {
		if len(p.PageLinks) == 0 {
			return nil
		}
		items := make([]models.PageLink, len(p.PageLinks))
		for i, input := range p.PageLinks {
			items[i] = models.PageLink{Name: input.Name, Link: input.Link}
		}
		ids, err := s.sections.CreatePageLinks(gctx, items)
		if err != nil {
			return err
		}
		footer.PageLinks = ids
		return nil
	})

	g.Go(func() error {
		if len(p.OtherText) == 0 {
			return nil
		}
		icons, err := s.resolveIcons(gctx, files, "otherText", len(p.OtherText), nil)
		if err != nil {
			return err
		}
		items := make([]models.OtherTextBlock, len(p.OtherText))
		for i, input := range p.OtherText {
			items[i] = models.OtherTextBlock{Title: input.Title, Text: input.Text, Icon: icons[i]}
		}
		ids, err := s.sections.CreateOtherTextBlocks(gctx, items)
		if err != nil {
			return err
		}
		footer.OtherText = ids
		return nil
	})

	if err := g.Wait(); err != nil {
		return nil, err
	}

	if hasAccordion(p) {
		if err := validateAccordion(*p.Accordians); err != nil {
			return nil, err
		}
		groupID, err := s.sections.CreateAccordionGroup(ctx, models.AccordionGroup{
			MainTitle: p.Accordians.MainTitle,
			Items:     models.AccordionItemList(p.Accordians.Items),
		})
		if err != nil {
			return nil, err
		}
		footer.Accordians = models.IDList{groupID}
	}

	if err := s.db.WithContext(ctx).Create(footer).Error; err != nil {
		return nil, err
	}

	return footer, nil
}

// Update re-resolves every section list present in the payload, replacing the
// footer's references with freshly inserted records while carrying icons over
// from the previous records position by position. Lists absent from the
// payload keep their stored references. Superseded section records stay behind
// unreferenced; SweepOrphans reclaims them.
func (s *FooterService) Update(ctx context.Context, id uuid.UUID, p FooterPayload, files map[string]UploadedFile) (*models.Footer, error) {
	if err := ValidatePayload(p); err != nil {
		return nil, err
	}

	footer, err := s.footerByID(ctx, id)
	if err != nil {
		return nil, err
	}

	existingFollow, err := s.sections.FollowLinksByIDs(ctx, footer.FollowUs)
	if err != nil {
		return nil, err
	}
	existingOther, err := s.sections.OtherTextBlocksByIDs(ctx, footer.OtherText)
	if err != nil {
		return nil, err
	}

	footer.Status = p.Status
	footer.Name = p.Name

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		if len(p.FollowUs) == 0 {
			return nil
		}
		icons, err := s.resolveIcons(gctx, files, "followUs", len(p.FollowUs), followLinkIcons(existingFollow))
		if err != nil {
			return err
		}
		items := make([]models.FollowLink, len(p.FollowUs))
		for i, input := range p.FollowUs {
			items[i] = models.FollowLink{Link: input.Link, Icon: icons[i]}
		}
		ids, err := s.sections.CreateFollowLinks(gctx, items)
		if err != nil {
			return err
		}
		footer.FollowUs = ids
		return nil
	})

	g.Go(func() error {
		if len(p.PageLinks) == 0 {
			return nil
		}
		items := make([]models.PageLink, len(p.PageLinks))
		for i, input := range p.PageLinks {
			items[i] = models.PageLink{Name: input.Name, Link: input.Link}
		}
		ids, err := s.sections.CreatePageLinks(gctx, items)
		if err != nil {
			return err
		}
		footer.PageLinks = ids
		return nil
	})

	g.Go(func() error {
		if len(p.OtherText) == 0 {
			return nil
		}
		icons, err := s.resolveIcons(gctx, files, "otherText", len(p.OtherText), otherTextIcons(existingOther))
		if err != nil {
			return err
		}
		items := make([]models.OtherTextBlock, len(p.OtherText))
		for i, input := range p.OtherText {
			items[i] = models.OtherTextBlock{Title: input.Title, Text: input.Text, Icon: icons[i]}
		}
		ids, err := s.sections.CreateOtherTextBlocks(gctx, items)
		if err != nil {
			return err
		}
		footer.OtherText = ids
		return nil
	})

	if err := g.Wait(); err != nil {
		return nil, err
	}

	if hasAccordion(p) {
		if err := validateAccordion(*p.Accordians); err != nil {
			return nil, err
		}
		groupID, err := s.sections.UpsertAccordionGroup(ctx, footer.Accordians, p.Accordians.MainTitle, models.AccordionItemList(p.Accordians.Items))
		if err != nil {
			return nil, err
		}
		footer.Accordians = models.IDList{groupID}
	}

	if err := s.db.WithContext(ctx).Save(footer).Error; err != nil {
		return nil, err
	}

	return footer, nil
}

// List returns every footer record without expanding sections.
func (s *FooterService) List(ctx context.Context) ([]models.Footer, error) {
	var footers []models.Footer
	if err := s.db.WithContext(ctx).Find(&footers).Error; err != nil {
		return nil, err
	}
	return footers, nil
}

// ListDetails returns footers with sections expanded, plus the total count.
func (s *FooterService) ListDetails(ctx context.Context, limit, offset int) ([]FooterDetail, int64, error) {
	var total int64
	if err := s.db.WithContext(ctx).Model(&models.Footer{}).Count(&total).Error; err != nil {
		return nil, 0, err
	}

	var footers []models.Footer
	if err := s.db.WithContext(ctx).Limit(limit).Offset(offset).
		Order("created_at desc").Find(&footers).Error; err != nil {
		return nil, 0, err
	}

	details := make([]FooterDetail, 0, len(footers))
	for _, footer := range footers {
		detail, err := s.expand(ctx, footer)
		if err != nil {
			return nil, 0, err
		}
		details = append(details, *detail)
	}

	return details, total, nil
}

// Get loads one footer with its sections expanded.
func (s *FooterService) Get(ctx context.Context, id uuid.UUID) (*FooterDetail, error) {
	footer, err := s.footerByID(ctx, id)
	if err != nil {
		return nil, err
	}
	return s.expand(ctx, *footer)
}

// SetStatus drives the single-active-footer invariant. Activation and its side
// effects run in one transaction so overlapping activations cannot leave two
// footers active. Deactivation touches nothing but the target.
func (s *FooterService) SetStatus(ctx context.Context, id uuid.UUID, status string) (*models.Footer, error) {
	if err := ValidateStatus(status); err != nil {
		return nil, err
	}

	var footer models.Footer
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.First(&footer, "id = ?", id).Error; err != nil {
			if err == gorm.ErrRecordNotFound {
				return ErrFooterNotFound
			}
			return err
		}

		if status == models.StatusActive {
			if footer.Name == models.SentinelFooterName {
				// The catch-all suppresses every individually managed footer.
				if err := tx.Model(&models.Footer{}).Where("id <> ?", id).
					Update("status", models.StatusInactive).Error; err != nil {
					return err
				}
			} else {
				// An individually active footer always overrides the catch-all.
				if err := tx.Model(&models.Footer{}).Where("name = ?", models.SentinelFooterName).
					Update("status", models.StatusInactive).Error; err != nil {
					return err
				}
			}
		}

		footer.Status = status
		return tx.Save(&footer).Error
	})
	if err != nil {
		return nil, err
	}

	return &footer, nil
}

// Delete removes the footer, all referenced section records, and their remote
// images. Remote deletes go first, while the section records still hold the
// identifiers, and are best-effort; the record deletions run in one
// transaction afterwards. Returns the footer's prior expanded representation.
func (s *FooterService) Delete(ctx context.Context, id uuid.UUID) (*FooterDetail, error) {
	footer, err := s.footerByID(ctx, id)
	if err != nil {
		return nil, err
	}
	detail, err := s.expand(ctx, *footer)
	if err != nil {
		return nil, err
	}

	for _, item := range detail.FollowUs {
		if item.Icon != nil {
			if err := s.images.Delete(ctx, item.Icon.RemoteID); err != nil {
				log.Printf("[Footer] remote image delete failed for follow link %s: %v", item.ID, err)
			}
		}
	}
	for _, item := range detail.OtherText {
		if item.Icon != nil {
			if err := s.images.Delete(ctx, item.Icon.RemoteID); err != nil {
				log.Printf("[Footer] remote image delete failed for text block %s: %v", item.ID, err)
			}
		}
	}

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		store := s.sections.WithTx(tx)
		if err := store.DeleteFollowLinks(ctx, footer.FollowUs); err != nil {
			return err
		}
		if err := store.DeletePageLinks(ctx, footer.PageLinks); err != nil {
			return err
		}
		if err := store.DeleteAccordionGroups(ctx, footer.Accordians); err != nil {
			return err
		}
		if err := store.DeleteOtherTextBlocks(ctx, footer.OtherText); err != nil {
			return err
		}
		return tx.Delete(&models.Footer{}, "id = ?", id).Error
	})
	if err != nil {
		return nil, err
	}

	return detail, nil
}

// SweepReport counts the records removed by one reconciliation pass.
type SweepReport struct {
	FollowLinks     int `json:"follow_links"`
	PageLinks       int `json:"page_links"`
	AccordionGroups int `json:"accordion_groups"`
	OtherTextBlocks int `json:"other_text_blocks"`
}

// SweepOrphans deletes section records no footer references anymore, the
// leftovers of past updates. Remote images are deleted first, best-effort,
// unless a still-referenced record shares the same remote identifier: icon
// carry-over copies identifiers into each new generation of records, so an
// orphan's image may be the live footer's image. Creation inserts section
// records before the footer row, so a sweep racing a create can misclassify
// the just-inserted records; run it during quiet periods.
func (s *FooterService) SweepOrphans(ctx context.Context) (*SweepReport, error) {
	footers, err := s.List(ctx)
	if err != nil {
		return nil, err
	}

	referenced := make(map[string]struct{})
	for _, footer := range footers {
		for _, list := range []models.IDList{footer.FollowUs, footer.PageLinks, footer.Accordians, footer.OtherText} {
			for _, id := range list {
				referenced[id] = struct{}{}
			}
		}
	}

	follow, err := s.sections.AllFollowLinks(ctx)
	if err != nil {
		return nil, err
	}
	others, err := s.sections.AllOtherTextBlocks(ctx)
	if err != nil {
		return nil, err
	}

	liveRemote := make(map[string]struct{})
	for _, item := range follow {
		if _, ok := referenced[item.ID.String()]; ok && item.Icon != nil {
			liveRemote[item.Icon.RemoteID] = struct{}{}
		}
	}
	for _, item := range others {
		if _, ok := referenced[item.ID.String()]; ok && item.Icon != nil {
			liveRemote[item.Icon.RemoteID] = struct{}{}
		}
	}

	deleteRemote := func(icon *models.Icon, recordID uuid.UUID) {
		if icon == nil {
			return
		}
		if _, live := liveRemote[icon.RemoteID]; live {
			return
		}
		if err := s.images.Delete(ctx, icon.RemoteID); err != nil {
			log.Printf("[Footer] sweep: remote image delete failed for %s: %v", recordID, err)
		}
	}

	report := &SweepReport{}

	var orphanFollow models.IDList
	for _, item := range follow {
		if _, ok := referenced[item.ID.String()]; ok {
			continue
		}
		deleteRemote(item.Icon, item.ID)
		orphanFollow = append(orphanFollow, item.ID.String())
	}
	if err := s.sections.DeleteFollowLinks(ctx, orphanFollow); err != nil {
		return nil, err
	}
	report.FollowLinks = len(orphanFollow)

	pages, err := s.sections.AllPageLinks(ctx)
	if err != nil {
		return nil, err
	}
	var orphanPages models.IDList
	for _, item := range pages {
		if _, ok := referenced[item.ID.String()]; !ok {
			orphanPages = append(orphanPages, item.ID.String())
		}
	}
	if err := s.sections.DeletePageLinks(ctx, orphanPages); err != nil {
		return nil, err
	}
	report.PageLinks = len(orphanPages)

	groups, err := s.sections.AllAccordionGroups(ctx)
	if err != nil {
		return nil, err
	}
	var orphanGroups models.IDList
	for _, item := range groups {
		if _, ok := referenced[item.ID.String()]; !ok {
			orphanGroups = append(orphanGroups, item.ID.String())
		}
	}
	if err := s.sections.DeleteAccordionGroups(ctx, orphanGroups); err != nil {
		return nil, err
	}
	report.AccordionGroups = len(orphanGroups)

	var orphanOthers models.IDList
	for _, item := range others {
		if _, ok := referenced[item.ID.String()]; ok {
			continue
		}
		deleteRemote(item.Icon, item.ID)
		orphanOthers = append(orphanOthers, item.ID.String())
	}
	if err := s.sections.DeleteOtherTextBlocks(ctx, orphanOthers); err != nil {
		return nil, err
	}
	report.OtherTextBlocks = len(orphanOthers)

	return report, nil
}

func (s *FooterService) footerByID(ctx context.Context, id uuid.UUID) (*models.Footer, error) {
	var footer models.Footer
	if err := s.db.WithContext(ctx).First(&footer, "id = ?", id).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, ErrFooterNotFound
		}
		return nil, err
	}
	return &footer, nil
}

func (s *FooterService) expand(ctx context.Context, footer models.Footer) (*FooterDetail, error) {
	follow, err := s.sections.FollowLinksByIDs(ctx, footer.FollowUs)
	if err != nil {
		return nil, err
	}
	pages, err := s.sections.PageLinksByIDs(ctx, footer.PageLinks)
	if err != nil {
		return nil, err
	}
	groups, err := s.sections.AccordionGroupsByIDs(ctx, footer.Accordians)
	if err != nil {
		return nil, err
	}
	others, err := s.sections.OtherTextBlocksByIDs(ctx, footer.OtherText)
	if err != nil {
		return nil, err
	}

	return &FooterDetail{
		ID:         footer.ID,
		Status:     footer.Status,
		Name:       footer.Name,
		FollowUs:   follow,
		PageLinks:  pages,
		Accordians: groups,
		OtherText:  others,
	}, nil
}
