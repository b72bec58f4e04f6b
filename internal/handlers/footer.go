package handlers

import (
	"errors"
	"io"
	"mime/multipart"
	"strconv"
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"

	"github.com/example/aquaspa/internal/models"
	"github.com/example/aquaspa/internal/services"
	"github.com/example/aquaspa/internal/utils"
)

// FooterHandler exposes the footer content-management endpoints.
type FooterHandler struct {
	footers *services.FooterService
}

// NewFooterHandler constructs FooterHandler.
func NewFooterHandler(footers *services.FooterService) *FooterHandler {
	return &FooterHandler{footers: footers}
}

// RegisterFooterRoutes attaches footer routes. Mutations require auth.
func (h *FooterHandler) RegisterFooterRoutes(router fiber.Router, authorize fiber.Handler) {
	router.Get("/", h.ListFooters)
	router.Get("/footers", h.ListExpanded)
	router.Post("/", authorize, h.CreateFooter)
	router.Post("/maintenance/sweep", authorize, h.SweepOrphans)
	router.Get("/:id", authorize, h.GetFooter)
	router.Put("/:id/status", authorize, h.UpdateStatus)
	router.Put("/:id", authorize, h.UpdateFooter)
	router.Delete("/:id", authorize, h.DeleteFooter)
}

// ListFooters returns the name and status of every footer.
func (h *FooterHandler) ListFooters(c *fiber.Ctx) error {
	footers, err := h.footers.List(c.UserContext())
	if err != nil {
		return err
	}

	summaries := make([]fiber.Map, 0, len(footers))
	for _, footer := range footers {
		summaries = append(summaries, fiber.Map{
			"id":     footer.ID,
			"name":   footer.Name,
			"status": footer.Status,
		})
	}

	return c.JSON(fiber.Map{"success": true, "data": summaries})
}

// ListExpanded returns paginated footers with their sections loaded.
func (h *FooterHandler) ListExpanded(c *fiber.Ctx) error {
	pg := utils.ParsePagination(c)
	details, total, err := h.footers.ListDetails(c.UserContext(), pg.Limit, pg.Offset)
	if err != nil {
		return err
	}

	return c.JSON(fiber.Map{"success": true, "data": details, "pagination": fiber.Map{
		"current_page":   pg.Page,
		"items_per_page": pg.Limit,
		"total_items":    total,
	}})
}

// GetFooter returns one footer with its sections loaded.
func (h *FooterHandler) GetFooter(c *fiber.Ctx) error {
	id, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid id")
	}

	detail, err := h.footers.Get(c.UserContext(), id)
	if err != nil {
		return mapServiceError(err)
	}

	return c.JSON(fiber.Map{"success": true, "data": detail})
}

// CreateFooter composes a new footer from a multipart or JSON body.
func (h *FooterHandler) CreateFooter(c *fiber.Ctx) error {
	payload, files, err := decodeFooterPayload(c)
	if err != nil {
		return err
	}

	footer, err := h.footers.Create(c.UserContext(), payload, files)
	if err != nil {
		return mapServiceError(err)
	}

	return c.Status(fiber.StatusCreated).JSON(fiber.Map{"success": true, "data": footer})
}

// UpdateFooter re-composes an existing footer.
func (h *FooterHandler) UpdateFooter(c *fiber.Ctx) error {
	id, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid id")
	}

	payload, files, err := decodeFooterPayload(c)
	if err != nil {
		return err
	}

	footer, err := h.footers.Update(c.UserContext(), id, payload, files)
	if err != nil {
		return mapServiceError(err)
	}

	return c.JSON(fiber.Map{"success": true, "data": footer})
}

// DeleteFooter cascades a footer deletion and returns the removed content.
func (h *FooterHandler) DeleteFooter(c *fiber.Ctx) error {
	id, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid id")
	}

	detail, err := h.footers.Delete(c.UserContext(), id)
	if err != nil {
		return mapServiceError(err)
	}

	return c.JSON(fiber.Map{"success": true, "data": detail})
}

type statusRequest struct {
	Status string `json:"status"`
}

// UpdateStatus drives the active-footer status transition.
func (h *FooterHandler) UpdateStatus(c *fiber.Ctx) error {
	id, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid id")
	}

	var req statusRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid request body")
	}

	footer, err := h.footers.SetStatus(c.UserContext(), id, req.Status)
	if err != nil {
		return mapServiceError(err)
	}

	return c.JSON(fiber.Map{"success": true, "data": footer})
}

// SweepOrphans reclaims section records no footer references anymore.
func (h *FooterHandler) SweepOrphans(c *fiber.Ctx) error {
	report, err := h.footers.SweepOrphans(c.UserContext())
	if err != nil {
		return err
	}

	return c.JSON(fiber.Map{"success": true, "data": report})
}

func mapServiceError(err error) error {
	var verr *services.ValidationError
	if errors.As(err, &verr) {
		return fiber.NewError(fiber.StatusBadRequest, verr.Error())
	}
	if errors.Is(err, services.ErrFooterNotFound) {
		return fiber.NewError(fiber.StatusNotFound, "footer not found")
	}
	return err
}

// decodeFooterPayload reads either a JSON body or a multipart form. Multipart
// forms carry scalar fields plus bracketed array fields, and icon uploads named
// "<section>[<index>][icon]".
func decodeFooterPayload(c *fiber.Ctx) (services.FooterPayload, map[string]services.UploadedFile, error) {
	contentType := string(c.Request().Header.ContentType())
	if !strings.HasPrefix(contentType, fiber.MIMEMultipartForm) {
		var payload services.FooterPayload
		if err := c.BodyParser(&payload); err != nil {
			return payload, nil, fiber.NewError(fiber.StatusBadRequest, "invalid request body")
		}
		return payload, nil, nil
	}

	form, err := c.MultipartForm()
	if err != nil {
		return services.FooterPayload{}, nil, fiber.NewError(fiber.StatusBadRequest, "invalid multipart form")
	}

	payload := payloadFromForm(form.Value)

	files, err := filesFromForm(form.File)
	if err != nil {
		return payload, nil, err
	}

	return payload, files, nil
}

// payloadFromForm rebuilds the nested footer payload from flat bracketed form
// keys such as "followUs[0][link]" or "accordians[items][1][title]". Index
// order is the client's submission order and must line up with uploaded icon
// field names. Malformed keys are skipped; validation happens in the service.
func payloadFromForm(values map[string][]string) services.FooterPayload {
	payload := services.FooterPayload{}

	for key, fieldValues := range values {
		if len(fieldValues) == 0 {
			continue
		}
		value := fieldValues[0]
		parts := splitBrackets(key)

		switch parts[0] {
		case "status":
			payload.Status = value
		case "name":
			payload.Name = value
		case "followUs":
			idx, field, ok := indexedField(parts)
			if !ok {
				continue
			}
			for len(payload.FollowUs) <= idx {
				payload.FollowUs = append(payload.FollowUs, services.FollowLinkInput{})
			}
			if field == "link" {
				payload.FollowUs[idx].Link = value
			}
		case "pageLinks":
			idx, field, ok := indexedField(parts)
			if !ok {
				continue
			}
			for len(payload.PageLinks) <= idx {
				payload.PageLinks = append(payload.PageLinks, services.PageLinkInput{})
			}
			switch field {
			case "name":
				payload.PageLinks[idx].Name = value
			case "link":
				payload.PageLinks[idx].Link = value
			}
		case "otherText":
			idx, field, ok := indexedField(parts)
			if !ok {
				continue
			}
			for len(payload.OtherText) <= idx {
				payload.OtherText = append(payload.OtherText, services.OtherTextInput{})
			}
			switch field {
			case "title":
				payload.OtherText[idx].Title = value
			case "text":
				payload.OtherText[idx].Text = value
			}
		case "accordians":
			if len(parts) == 2 && parts[1] == "mainTitle" {
				if payload.Accordians == nil {
					payload.Accordians = &services.AccordionInput{}
				}
				payload.Accordians.MainTitle = value
				continue
			}
			// accordians[items][<idx>][title|text]
			if len(parts) != 4 || parts[1] != "items" {
				continue
			}
			idx, err := strconv.Atoi(parts[2])
			if err != nil || idx < 0 {
				continue
			}
			if payload.Accordians == nil {
				payload.Accordians = &services.AccordionInput{}
			}
			for len(payload.Accordians.Items) <= idx {
				payload.Accordians.Items = append(payload.Accordians.Items, models.AccordionItem{})
			}
			switch parts[3] {
			case "title":
				payload.Accordians.Items[idx].Title = value
			case "text":
				payload.Accordians.Items[idx].Text = value
			}
		}
	}

	return payload
}

func filesFromForm(fileFields map[string][]*multipart.FileHeader) (map[string]services.UploadedFile, error) {
	files := make(map[string]services.UploadedFile, len(fileFields))
	for field, headers := range fileFields {
		if len(headers) == 0 {
			continue
		}
		header := headers[0]

		src, err := header.Open()
		if err != nil {
			return nil, fiber.NewError(fiber.StatusBadRequest, "unreadable upload "+field)
		}
		data, err := io.ReadAll(src)
		src.Close()
		if err != nil {
			return nil, fiber.NewError(fiber.StatusBadRequest, "unreadable upload "+field)
		}

		files[field] = services.UploadedFile{
			FieldName: field,
			Data:      data,
			MimeType:  header.Header.Get("Content-Type"),
		}
	}
	return files, nil
}

// splitBrackets turns "followUs[0][link]" into ["followUs", "0", "link"].
func splitBrackets(key string) []string {
	parts := []string{}
	rest := key
	if open := strings.IndexByte(rest, '['); open >= 0 {
		parts = append(parts, rest[:open])
		rest = rest[open:]
	} else {
		return []string{rest}
	}

	for strings.HasPrefix(rest, "[") {
		end := strings.IndexByte(rest, ']')
		if end < 0 {
			break
		}
		parts = append(parts, rest[1:end])
		rest = rest[end+1:]
	}

	return parts
}

func indexedField(parts []string) (int, string, bool) {
	if len(parts) != 3 {
		return 0, "", false
	}
	idx, err := strconv.Atoi(parts[1])
	if err != nil || idx < 0 {
		return 0, "", false
	}
	return idx, parts[2], true
}
