package services

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/example/aquaspa/internal/database"
	"github.com/example/aquaspa/internal/models"
)

type fakeImageStore struct {
	mu         sync.Mutex
	uploads    []string
	deleted    []string
	failUpload bool
	failDelete bool
	seq        int
}

func (f *fakeImageStore) Upload(_ context.Context, _ []byte, mimeType string, _ UploadOptions) (*models.Icon, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failUpload {
		return nil, errors.New("image host unavailable")
	}
	f.seq++
	id := fmt.Sprintf("img-%d", f.seq)
	f.uploads = append(f.uploads, mimeType)
	return &models.Icon{RemoteID: id, URL: "https://img.example/" + id}, nil
}

func (f *fakeImageStore) Delete(_ context.Context, remoteID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.deleted = append(f.deleted, remoteID)
	if f.failDelete {
		return errors.New("image host reported error")
	}
	return nil
}

func setupTestService(t *testing.T) (*FooterService, *fakeImageStore, *gorm.DB, func()) {
	t.Helper()

	gdb, err := gorm.Open(sqlite.Open("file::memory:?cache=shared"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("failed to open test database: %v", err)
	}

	// A single connection serializes the concurrent section inserts, which
	// shared-cache sqlite cannot otherwise handle.
	sqlDB, err := gdb.DB()
	if err != nil {
		t.Fatalf("failed to access sql.DB: %v", err)
	}
	sqlDB.SetMaxOpenConns(1)

	if err := database.Migrate(gdb); err != nil {
		t.Fatalf("failed to migrate test database: %v", err)
	}

	images := &fakeImageStore{}
	svc := NewFooterService(gdb, NewSectionStore(gdb), images)

	return svc, images, gdb, func() {
		sqlDB.Close()
	}
}

func basePayload() FooterPayload {
	return FooterPayload{
		Status: models.StatusInactive,
		Name:   "Main Footer",
	}
}

func TestCreateFooterPersistsSections(t *testing.T) {
	svc, images, gdb, cleanup := setupTestService(t)
	defer cleanup()

	payload := basePayload()
	payload.FollowUs = []FollowLinkInput{
		{Link: "https://instagram.com/aquaspa"},
		{Link: "https://t.me/aquaspa"},
	}
	payload.PageLinks = []PageLinkInput{
		{Name: "https://aquaspa.example/about", Link: "https://aquaspa.example/about"},
	}
	payload.OtherText = []OtherTextInput{
		{Title: "Delivery", Text: "Free delivery within the city."},
	}
	payload.Accordians = &AccordionInput{
		MainTitle: "FAQ",
		Items: []models.AccordionItem{
			{Title: "Warranty?", Text: "Two years."},
		},
	}

	footer, err := svc.Create(context.Background(), payload, nil)
	require.NoError(t, err)
	require.Len(t, footer.FollowUs, 2)
	require.Len(t, footer.PageLinks, 1)
	require.Len(t, footer.Accordians, 1)
	require.Len(t, footer.OtherText, 1)
	assert.Empty(t, images.uploads, "no files submitted, no uploads expected")

	detail, err := svc.Get(context.Background(), footer.ID)
	require.NoError(t, err)
	require.Len(t, detail.FollowUs, 2)
	assert.Equal(t, "https://instagram.com/aquaspa", detail.FollowUs[0].Link)
	assert.Equal(t, "https://t.me/aquaspa", detail.FollowUs[1].Link)
	assert.Nil(t, detail.FollowUs[0].Icon)
	require.Len(t, detail.Accordians, 1)
	assert.Equal(t, "FAQ", detail.Accordians[0].MainTitle)
	require.Len(t, detail.Accordians[0].Items, 1)
	assert.Equal(t, "Warranty?", detail.Accordians[0].Items[0].Title)

	var count int64
	require.NoError(t, gdb.Model(&models.FollowLink{}).Count(&count).Error)
	assert.EqualValues(t, 2, count)
}

func TestCreateFooterEmptyListsCreateNoRecords(t *testing.T) {
	svc, _, gdb, cleanup := setupTestService(t)
	defer cleanup()

	footer, err := svc.Create(context.Background(), basePayload(), nil)
	require.NoError(t, err)
	assert.Empty(t, footer.FollowUs)
	assert.Empty(t, footer.PageLinks)
	assert.Empty(t, footer.Accordians)
	assert.Empty(t, footer.OtherText)

	for _, model := range []interface{}{&models.FollowLink{}, &models.PageLink{}, &models.AccordionGroup{}, &models.OtherTextBlock{}} {
		var count int64
		require.NoError(t, gdb.Model(model).Count(&count).Error)
		assert.EqualValues(t, 0, count)
	}
}

func TestCreateFooterAttachesUploadedIcon(t *testing.T) {
	svc, images, _, cleanup := setupTestService(t)
	defer cleanup()

	payload := basePayload()
	payload.FollowUs = []FollowLinkInput{
		{Link: "https://instagram.com/aquaspa"},
		{Link: "https://t.me/aquaspa"},
	}
	files := map[string]UploadedFile{
		"followUs[1][icon]": {FieldName: "followUs[1][icon]", Data: []byte("png-bytes"), MimeType: "image/png"},
	}

	footer, err := svc.Create(context.Background(), payload, files)
	require.NoError(t, err)
	require.Len(t, images.uploads, 1)

	detail, err := svc.Get(context.Background(), footer.ID)
	require.NoError(t, err)
	assert.Nil(t, detail.FollowUs[0].Icon)
	require.NotNil(t, detail.FollowUs[1].Icon)
	assert.Equal(t, "img-1", detail.FollowUs[1].Icon.RemoteID)
	assert.Equal(t, "https://img.example/img-1", detail.FollowUs[1].Icon.URL)
}

func TestCreateFooterUploadFailureAborts(t *testing.T) {
	svc, images, gdb, cleanup := setupTestService(t)
	defer cleanup()

	images.failUpload = true

	payload := basePayload()
	payload.FollowUs = []FollowLinkInput{{Link: "https://instagram.com/aquaspa"}}
	files := map[string]UploadedFile{
		"followUs[0][icon]": {FieldName: "followUs[0][icon]", Data: []byte("png-bytes"), MimeType: "image/png"},
	}

	_, err := svc.Create(context.Background(), payload, files)
	require.EqualError(t, err, "error processing icon")

	var count int64
	require.NoError(t, gdb.Model(&models.Footer{}).Count(&count).Error)
	assert.EqualValues(t, 0, count, "no footer may be persisted after an upload failure")
}

func TestCreateFooterValidation(t *testing.T) {
	svc, _, _, cleanup := setupTestService(t)
	defer cleanup()

	cases := []struct {
		name    string
		mutate  func(*FooterPayload)
		message string
	}{
		{"missing status", func(p *FooterPayload) { p.Status = "" }, `"status" is required`},
		{"bad status", func(p *FooterPayload) { p.Status = "archived" }, `"status" must be one of [active, inactive]`},
		{"missing name", func(p *FooterPayload) { p.Name = "" }, `"name" is required`},
		{"missing link", func(p *FooterPayload) {
			p.FollowUs = []FollowLinkInput{{Link: ""}}
		}, `"followUs[0][link]" is required`},
		{"missing text", func(p *FooterPayload) {
			p.OtherText = []OtherTextInput{{Title: "Delivery", Text: ""}}
		}, `"otherText[0][text]" is required`},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			payload := basePayload()
			tc.mutate(&payload)
			_, err := svc.Create(context.Background(), payload, nil)
			var verr *ValidationError
			require.ErrorAs(t, err, &verr)
			assert.Equal(t, tc.message, verr.Error())
		})
	}
}

func TestUpdateOmittedSectionsCarryOver(t *testing.T) {
	svc, _, _, cleanup := setupTestService(t)
	defer cleanup()

	payload := basePayload()
	payload.PageLinks = []PageLinkInput{
		{Name: "https://aquaspa.example/about", Link: "https://aquaspa.example/about"},
	}
	footer, err := svc.Create(context.Background(), payload, nil)
	require.NoError(t, err)
	originalPageLinks := footer.PageLinks

	update := basePayload()
	update.Name = "Renamed Footer"
	update.FollowUs = []FollowLinkInput{{Link: "https://t.me/aquaspa"}}

	updated, err := svc.Update(context.Background(), footer.ID, update, nil)
	require.NoError(t, err)
	assert.Equal(t, "Renamed Footer", updated.Name)
	assert.Equal(t, originalPageLinks, updated.PageLinks, "omitted section must keep its references")
	require.Len(t, updated.FollowUs, 1)
}

func TestUpdateCarriesIconByPosition(t *testing.T) {
	svc, images, _, cleanup := setupTestService(t)
	defer cleanup()

	payload := basePayload()
	payload.FollowUs = []FollowLinkInput{{Link: "https://instagram.com/aquaspa"}}
	files := map[string]UploadedFile{
		"followUs[0][icon]": {FieldName: "followUs[0][icon]", Data: []byte("png-bytes"), MimeType: "image/png"},
	}
	footer, err := svc.Create(context.Background(), payload, files)
	require.NoError(t, err)
	require.Len(t, images.uploads, 1)

	update := basePayload()
	update.FollowUs = []FollowLinkInput{{Link: "https://instagram.com/aquaspa_store"}}

	updated, err := svc.Update(context.Background(), footer.ID, update, nil)
	require.NoError(t, err)
	assert.NotEqual(t, footer.FollowUs, updated.FollowUs, "update replaces section records")

	detail, err := svc.Get(context.Background(), footer.ID)
	require.NoError(t, err)
	require.Len(t, detail.FollowUs, 1)
	require.NotNil(t, detail.FollowUs[0].Icon)
	assert.Equal(t, "img-1", detail.FollowUs[0].Icon.RemoteID)
	assert.Equal(t, "https://img.example/img-1", detail.FollowUs[0].Icon.URL)
	assert.Len(t, images.uploads, 1, "carried icons must not be re-uploaded")
}

func TestUpdateLeavesOldRecordsOrphaned(t *testing.T) {
	svc, _, gdb, cleanup := setupTestService(t)
	defer cleanup()

	payload := basePayload()
	payload.FollowUs = []FollowLinkInput{{Link: "https://instagram.com/aquaspa"}}
	footer, err := svc.Create(context.Background(), payload, nil)
	require.NoError(t, err)

	update := basePayload()
	update.FollowUs = []FollowLinkInput{{Link: "https://t.me/aquaspa"}}
	_, err = svc.Update(context.Background(), footer.ID, update, nil)
	require.NoError(t, err)

	var count int64
	require.NoError(t, gdb.Model(&models.FollowLink{}).Count(&count).Error)
	assert.EqualValues(t, 2, count, "superseded records stay until the sweep")
}

func TestUpdateAccordionUpsertsInPlace(t *testing.T) {
	svc, _, gdb, cleanup := setupTestService(t)
	defer cleanup()

	payload := basePayload()
	payload.Accordians = &AccordionInput{
		MainTitle: "FAQ",
		Items:     []models.AccordionItem{{Title: "Warranty?", Text: "Two years."}},
	}
	footer, err := svc.Create(context.Background(), payload, nil)
	require.NoError(t, err)
	require.Len(t, footer.Accordians, 1)

	update := basePayload()
	update.Accordians = &AccordionInput{
		MainTitle: "FAQ",
		Items:     []models.AccordionItem{{Title: "Warranty?", Text: "Two years."}},
	}
	updated, err := svc.Update(context.Background(), footer.ID, update, nil)
	require.NoError(t, err)
	assert.Equal(t, footer.Accordians, updated.Accordians, "accordion identity must be reused")

	var count int64
	require.NoError(t, gdb.Model(&models.AccordionGroup{}).Count(&count).Error)
	assert.EqualValues(t, 1, count)
}

func TestActivateDeactivatesSentinel(t *testing.T) {
	svc, _, _, cleanup := setupTestService(t)
	defer cleanup()

	sentinelPayload := basePayload()
	sentinelPayload.Status = models.StatusActive
	sentinelPayload.Name = models.SentinelFooterName
	sentinel, err := svc.Create(context.Background(), sentinelPayload, nil)
	require.NoError(t, err)

	promo, err := svc.Create(context.Background(), basePayload(), nil)
	require.NoError(t, err)

	activated, err := svc.SetStatus(context.Background(), promo.ID, models.StatusActive)
	require.NoError(t, err)
	assert.Equal(t, models.StatusActive, activated.Status)

	detail, err := svc.Get(context.Background(), sentinel.ID)
	require.NoError(t, err)
	assert.Equal(t, models.StatusInactive, detail.Status, "activating a footer must deactivate the sentinel")
}

func TestActivateSentinelDeactivatesAllOthers(t *testing.T) {
	svc, _, _, cleanup := setupTestService(t)
	defer cleanup()

	first := basePayload()
	first.Status = models.StatusActive
	footerA, err := svc.Create(context.Background(), first, nil)
	require.NoError(t, err)

	second := basePayload()
	second.Name = "Holiday Footer"
	second.Status = models.StatusActive
	footerB, err := svc.Create(context.Background(), second, nil)
	require.NoError(t, err)

	sentinelPayload := basePayload()
	sentinelPayload.Name = models.SentinelFooterName
	sentinel, err := svc.Create(context.Background(), sentinelPayload, nil)
	require.NoError(t, err)

	_, err = svc.SetStatus(context.Background(), sentinel.ID, models.StatusActive)
	require.NoError(t, err)

	for _, id := range []uuid.UUID{footerA.ID, footerB.ID} {
		detail, err := svc.Get(context.Background(), id)
		require.NoError(t, err)
		assert.Equal(t, models.StatusInactive, detail.Status)
	}
}

func TestDeactivateHasNoSideEffects(t *testing.T) {
	svc, _, _, cleanup := setupTestService(t)
	defer cleanup()

	first := basePayload()
	first.Status = models.StatusActive
	footerA, err := svc.Create(context.Background(), first, nil)
	require.NoError(t, err)

	second := basePayload()
	second.Name = "Holiday Footer"
	second.Status = models.StatusActive
	footerB, err := svc.Create(context.Background(), second, nil)
	require.NoError(t, err)

	_, err = svc.SetStatus(context.Background(), footerA.ID, models.StatusInactive)
	require.NoError(t, err)

	detail, err := svc.Get(context.Background(), footerB.ID)
	require.NoError(t, err)
	assert.Equal(t, models.StatusActive, detail.Status)
}

func TestSetStatusNotFound(t *testing.T) {
	svc, _, _, cleanup := setupTestService(t)
	defer cleanup()

	_, err := svc.Create(context.Background(), basePayload(), nil)
	require.NoError(t, err)

	_, err = svc.SetStatus(context.Background(), uuid.New(), models.StatusActive)
	require.ErrorIs(t, err, ErrFooterNotFound)
}

func TestDeleteCascade(t *testing.T) {
	svc, images, gdb, cleanup := setupTestService(t)
	defer cleanup()

	payload := basePayload()
	payload.FollowUs = []FollowLinkInput{
		{Link: "https://instagram.com/aquaspa"},
		{Link: "https://t.me/aquaspa"},
	}
	payload.PageLinks = []PageLinkInput{
		{Name: "https://aquaspa.example/about", Link: "https://aquaspa.example/about"},
	}
	payload.OtherText = []OtherTextInput{{Title: "Delivery", Text: "Free delivery."}}
	payload.Accordians = &AccordionInput{
		MainTitle: "FAQ",
		Items:     []models.AccordionItem{{Title: "Warranty?", Text: "Two years."}},
	}
	files := map[string]UploadedFile{
		"followUs[0][icon]":  {FieldName: "followUs[0][icon]", Data: []byte("a"), MimeType: "image/png"},
		"followUs[1][icon]":  {FieldName: "followUs[1][icon]", Data: []byte("b"), MimeType: "image/jpeg"},
		"otherText[0][icon]": {FieldName: "otherText[0][icon]", Data: []byte("c"), MimeType: "image/png"},
	}

	footer, err := svc.Create(context.Background(), payload, files)
	require.NoError(t, err)
	require.Len(t, images.uploads, 3)

	detail, err := svc.Delete(context.Background(), footer.ID)
	require.NoError(t, err)
	assert.Equal(t, footer.ID, detail.ID)
	require.Len(t, detail.FollowUs, 2, "delete returns the prior representation")

	assert.Len(t, images.deleted, 3, "every stored icon triggers a remote delete")

	for _, model := range []interface{}{&models.Footer{}, &models.FollowLink{}, &models.PageLink{}, &models.AccordionGroup{}, &models.OtherTextBlock{}} {
		var count int64
		require.NoError(t, gdb.Model(model).Count(&count).Error)
		assert.EqualValues(t, 0, count)
	}
}

func TestDeleteSurvivesFailedRemoteDelete(t *testing.T) {
	svc, images, gdb, cleanup := setupTestService(t)
	defer cleanup()

	payload := basePayload()
	payload.FollowUs = []FollowLinkInput{{Link: "https://instagram.com/aquaspa"}}
	files := map[string]UploadedFile{
		"followUs[0][icon]": {FieldName: "followUs[0][icon]", Data: []byte("a"), MimeType: "image/png"},
	}
	footer, err := svc.Create(context.Background(), payload, files)
	require.NoError(t, err)

	images.failDelete = true

	_, err = svc.Delete(context.Background(), footer.ID)
	require.NoError(t, err, "failed remote deletes must not block the cascade")

	var count int64
	require.NoError(t, gdb.Model(&models.FollowLink{}).Count(&count).Error)
	assert.EqualValues(t, 0, count)
}

func TestDeleteNotFound(t *testing.T) {
	svc, _, _, cleanup := setupTestService(t)
	defer cleanup()

	_, err := svc.Create(context.Background(), basePayload(), nil)
	require.NoError(t, err)

	_, err = svc.Delete(context.Background(), uuid.New())
	require.ErrorIs(t, err, ErrFooterNotFound)
}

func TestSweepOrphansReclaimsSupersededRecords(t *testing.T) {
	svc, images, gdb, cleanup := setupTestService(t)
	defer cleanup()

	payload := basePayload()
	payload.FollowUs = []FollowLinkInput{{Link: "https://instagram.com/aquaspa"}}
	files := map[string]UploadedFile{
		"followUs[0][icon]": {FieldName: "followUs[0][icon]", Data: []byte("a"), MimeType: "image/png"},
	}
	footer, err := svc.Create(context.Background(), payload, files)
	require.NoError(t, err)

	// Replace the list twice; two generations of records become orphaned.
	for _, link := range []string{"https://t.me/aquaspa", "https://vk.com/aquaspa"} {
		update := basePayload()
		update.FollowUs = []FollowLinkInput{{Link: link}}
		_, err = svc.Update(context.Background(), footer.ID, update, nil)
		require.NoError(t, err)
	}

	report, err := svc.SweepOrphans(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, report.FollowLinks)
	assert.Equal(t, 0, report.PageLinks)

	var count int64
	require.NoError(t, gdb.Model(&models.FollowLink{}).Count(&count).Error)
	assert.EqualValues(t, 1, count, "only the referenced record survives")

	// Carry-over copied the uploaded icon into every generation, the surviving
	// record included, so its remote image must outlive the sweep.
	assert.NotContains(t, images.deleted, "img-1")

	detail, err := svc.Get(context.Background(), footer.ID)
	require.NoError(t, err)
	require.NotNil(t, detail.FollowUs[0].Icon)
	assert.Equal(t, "img-1", detail.FollowUs[0].Icon.RemoteID)
}

func TestSweepOrphansDeletesUnsharedRemoteImages(t *testing.T) {
	svc, images, _, cleanup := setupTestService(t)
	defer cleanup()

	payload := basePayload()
	payload.FollowUs = []FollowLinkInput{{Link: "https://instagram.com/aquaspa"}}
	files := map[string]UploadedFile{
		"followUs[0][icon]": {FieldName: "followUs[0][icon]", Data: []byte("a"), MimeType: "image/png"},
	}
	footer, err := svc.Create(context.Background(), payload, files)
	require.NoError(t, err)

	// A fresh upload replaces the icon, so the first image is orphan-only.
	update := basePayload()
	update.FollowUs = []FollowLinkInput{{Link: "https://instagram.com/aquaspa"}}
	replacement := map[string]UploadedFile{
		"followUs[0][icon]": {FieldName: "followUs[0][icon]", Data: []byte("b"), MimeType: "image/png"},
	}
	_, err = svc.Update(context.Background(), footer.ID, update, replacement)
	require.NoError(t, err)

	report, err := svc.SweepOrphans(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, report.FollowLinks)

	assert.Contains(t, images.deleted, "img-1")
	assert.NotContains(t, images.deleted, "img-2")

	detail, err := svc.Get(context.Background(), footer.ID)
	require.NoError(t, err)
	require.NotNil(t, detail.FollowUs[0].Icon)
	assert.Equal(t, "img-2", detail.FollowUs[0].Icon.RemoteID)
}
