// Package httpapi exposes the press service over HTTP: a public read surface
// for rendering and a JWT-guarded management surface for authoring.
package httpapi

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/jwtauth"
	"github.com/go-chi/render"
	"github.com/google/uuid"

	"github.com/gutterpress/gutterpress/pkg/press"
)

// Handler handles HTTP requests for the press service
type Handler struct {
	service   press.Service
	tokenAuth *jwtauth.JWTAuth
}

// New creates a new handler. jwtSecret guards the management routes; when
// empty they are mounted without authentication (development only).
func New(service press.Service, jwtSecret string) *Handler {
	h := &Handler{service: service}
	if jwtSecret != "" {
		h.tokenAuth = jwtauth.New("HS256", []byte(jwtSecret), nil)
	}
	return h
}

// Routes returns the full route tree
func (h *Handler) Routes() chi.Router {
	r := chi.NewRouter()

	// Public read surface
	r.Get("/posts", h.ListPublishedPosts)
	r.Get("/posts/{slug}", h.GetPublishedBySlug(press.PostableKindPost))
	r.Get("/pages/{slug}", h.GetPublishedBySlug(press.PostableKindPage))
	r.Get("/menu", h.GetMenu)
	r.Get("/settings", h.GetSettings)
	r.Get("/postables/{id}/cover/{variant}", h.GetVariantURL)

	// Management surface
	r.Route("/manage", func(r chi.Router) {
		if h.tokenAuth != nil {
			r.Use(jwtauth.Verifier(h.tokenAuth))
			r.Use(jwtauth.Authenticator)
		}

		r.Post("/postables", h.CreatePostable)
		r.Get("/postables", h.ListPostables)
		r.Get("/postables/{id}", h.GetPostable)
		r.Patch("/postables/{id}", h.UpdatePostable)
		r.Delete("/postables/{id}", h.DeletePostable)
		r.Put("/postables/{id}/cover", h.AttachCoverImage)
		r.Delete("/postables/{id}/cover", h.RemoveCoverImage)
		r.Post("/postables/{id}/derivatives", h.EnqueueDerivatives)

		r.Get("/menu", h.GetAdminMenu)
		r.Post("/menu", h.AddMenuItem)
		r.Delete("/menu/{id}", h.RemoveMenuItem)
		r.Put("/menu/{id}/enabled", h.SetMenuItemEnabled)
		r.Put("/menu/reorder", h.ReorderMenu)

		r.Put("/settings", h.UpdateSettings)
	})

	return r
}

// Postable request/response bodies

// CreatePostableBody is the request body for creating a postable
type CreatePostableBody struct {
	Kind        string     `json:"kind"`
	Title       string     `json:"title"`
	Slug        string     `json:"slug,omitempty"`
	Excerpt     string     `json:"excerpt,omitempty"`
	Body        string     `json:"body,omitempty"`
	Publish     bool       `json:"publish"`
	PublishedAt *time.Time `json:"published_at,omitempty"`
}

// UpdatePostableBody is the request body for patching a postable
type UpdatePostableBody struct {
	Title            *string    `json:"title,omitempty"`
	Slug             *string    `json:"slug,omitempty"`
	Excerpt          *string    `json:"excerpt,omitempty"`
	Body             *string    `json:"body,omitempty"`
	Publish          *bool      `json:"publish,omitempty"`
	PublishedAt      *time.Time `json:"published_at,omitempty"`
	ClearPublishedAt bool       `json:"clear_published_at,omitempty"`
}

// PostableResponse is the response body for a postable
type PostableResponse struct {
	ID          string            `json:"id"`
	Kind        string            `json:"kind"`
	Title       string            `json:"title"`
	Slug        string            `json:"slug"`
	Path        string            `json:"path"`
	Excerpt     string            `json:"excerpt,omitempty"`
	Body        string            `json:"body,omitempty"`
	Publish     bool              `json:"publish"`
	PublishedAt *time.Time        `json:"published_at,omitempty"`
	CoverImage  *press.CoverImage `json:"cover_image,omitempty"`
	CreatedAt   time.Time         `json:"created_at"`
	UpdatedAt   time.Time         `json:"updated_at"`
}

func postableResponse(p *press.Postable) PostableResponse {
	return PostableResponse{
		ID:          p.ID.String(),
		Kind:        string(p.Kind),
		Title:       p.Title,
		Slug:        p.Slug,
		Path:        p.Path(),
		Excerpt:     p.DisplayExcerpt(),
		Body:        p.Body,
		Publish:     p.Publish,
		PublishedAt: p.PublishedAt,
		CoverImage:  p.CoverImage,
		CreatedAt:   p.CreatedAt,
		UpdatedAt:   p.UpdatedAt,
	}
}

// Public handlers

// ListPublishedPosts lists currently published posts
func (h *Handler) ListPublishedPosts(w http.ResponseWriter, r *http.Request) {
	posts, err := h.service.ListPublished(r.Context(), press.PostableKindPost)
	if err != nil {
		h.renderError(w, r, err)
		return
	}

	out := make([]PostableResponse, 0, len(posts))
	for _, p := range posts {
		out = append(out, postableResponse(p))
	}
	render.JSON(w, r, out)
}

// GetPublishedBySlug serves one published post or page by slug. Unpublished
// records are indistinguishable from missing ones.
func (h *Handler) GetPublishedBySlug(kind press.PostableKind) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		p, err := h.service.GetPostableBySlug(r.Context(), chi.URLParam(r, "slug"))
		if err != nil {
			h.renderError(w, r, err)
			return
		}
		if p.Kind != kind || !p.Published(time.Now()) {
			h.renderError(w, r, press.ErrPostableNotFound)
			return
		}
		render.JSON(w, r, postableResponse(p))
	}
}

// GetMenu serves the active navigation menu
func (h *Handler) GetMenu(w http.ResponseWriter, r *http.Request) {
	entries, err := h.service.ActiveMenu(r.Context())
	if err != nil {
		h.renderError(w, r, err)
		return
	}
	render.JSON(w, r, entries)
}

// GetSettings serves the effective site settings
func (h *Handler) GetSettings(w http.ResponseWriter, r *http.Request) {
	settings, err := h.service.AllSettings(r.Context())
	if err != nil {
		h.renderError(w, r, err)
		return
	}
	render.JSON(w, r, settings)
}

// GetVariantURL serves the download URL for a cover image derivative. While
// the derivative is still being generated it responds 202 with no URL, so the
// client renders without the asset and retries later.
func (h *Handler) GetVariantURL(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		http.Error(w, "Invalid postable ID", http.StatusBadRequest)
		return
	}

	url, err := h.service.VariantURL(r.Context(), id, chi.URLParam(r, "variant"))
	if err != nil {
		if errors.Is(err, press.ErrVariantNotReady) {
			render.Status(r, http.StatusAccepted)
			render.JSON(w, r, map[string]string{"status": "generating"})
			return
		}
		h.renderError(w, r, err)
		return
	}
	render.JSON(w, r, map[string]string{"url": url})
}

// Management handlers

// CreatePostable creates a new post or page
func (h *Handler) CreatePostable(w http.ResponseWriter, r *http.Request) {
	var body CreatePostableBody
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	p, err := h.service.CreatePostable(r.Context(), press.CreatePostableRequest{
		Kind:        press.PostableKind(body.Kind),
		Title:       body.Title,
		Slug:        body.Slug,
		Excerpt:     body.Excerpt,
		Body:        body.Body,
		Publish:     body.Publish,
		PublishedAt: body.PublishedAt,
	})
	if err != nil {
		h.renderError(w, r, err)
		return
	}

	render.Status(r, http.StatusCreated)
	render.JSON(w, r, postableResponse(p))
}

// ListPostables lists all postables, optionally filtered by kind
func (h *Handler) ListPostables(w http.ResponseWriter, r *http.Request) {
	kind := press.PostableKind(r.URL.Query().Get("kind"))
	if kind != "" && !kind.Valid() {
		http.Error(w, "Invalid kind", http.StatusBadRequest)
		return
	}

	items, err := h.service.ListPostables(r.Context(), kind)
	if err != nil {
		h.renderError(w, r, err)
		return
	}

	out := make([]PostableResponse, 0, len(items))
	for _, p := range items {
		out = append(out, postableResponse(p))
	}
	render.JSON(w, r, out)
}

// GetPostable retrieves a postable by ID
func (h *Handler) GetPostable(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		http.Error(w, "Invalid postable ID", http.StatusBadRequest)
		return
	}

	p, err := h.service.GetPostable(r.Context(), id)
	if err != nil {
		h.renderError(w, r, err)
		return
	}
	render.JSON(w, r, postableResponse(p))
}

// UpdatePostable patches a postable
func (h *Handler) UpdatePostable(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		http.Error(w, "Invalid postable ID", http.StatusBadRequest)
		return
	}

	var body UpdatePostableBody
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	p, err := h.service.UpdatePostable(r.Context(), press.UpdatePostableRequest{
		ID:               id,
		Title:            body.Title,
		Slug:             body.Slug,
		Excerpt:          body.Excerpt,
		Body:             body.Body,
		Publish:          body.Publish,
		PublishedAt:      body.PublishedAt,
		ClearPublishedAt: body.ClearPublishedAt,
	})
	if err != nil {
		h.renderError(w, r, err)
		return
	}
	render.JSON(w, r, postableResponse(p))
}

// DeletePostable deletes a postable and its menu entry
func (h *Handler) DeletePostable(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		http.Error(w, "Invalid postable ID", http.StatusBadRequest)
		return
	}

	if err := h.service.DeletePostable(r.Context(), id); err != nil {
		h.renderError(w, r, err)
		return
	}
	render.NoContent(w, r)
}

// AttachCoverImage uploads a cover image from a multipart form
func (h *Handler) AttachCoverImage(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		http.Error(w, "Invalid postable ID", http.StatusBadRequest)
		return
	}

	file, header, err := r.FormFile("cover_image")
	if err != nil {
		http.Error(w, "cover_image file is required", http.StatusBadRequest)
		return
	}
	defer file.Close()

	var reader io.Reader = file
	p, err := h.service.AttachCoverImage(r.Context(), press.AttachCoverImageRequest{
		PostableID: id,
		FileName:   header.Filename,
		MimeType:   header.Header.Get("Content-Type"),
		Reader:     reader,
	})
	if err != nil {
		h.renderError(w, r, err)
		return
	}
	render.JSON(w, r, postableResponse(p))
}

// RemoveCoverImage detaches the cover image
func (h *Handler) RemoveCoverImage(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		http.Error(w, "Invalid postable ID", http.StatusBadRequest)
		return
	}

	p, err := h.service.RemoveCoverImage(r.Context(), id)
	if err != nil {
		h.renderError(w, r, err)
		return
	}
	render.JSON(w, r, postableResponse(p))
}

// EnqueueDerivatives explicitly schedules derivative generation
func (h *Handler) EnqueueDerivatives(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		http.Error(w, "Invalid postable ID", http.StatusBadRequest)
		return
	}

	enqueued, err := h.service.EnqueueDerivatives(r.Context(), id)
	if err != nil {
		h.renderError(w, r, err)
		return
	}
	render.Status(r, http.StatusAccepted)
	render.JSON(w, r, map[string]bool{"enqueued": enqueued})
}

// Menu handlers

// AddMenuItemBody is the request body for adding a menu item
type AddMenuItemBody struct {
	PageID   string `json:"page_id"`
	Position *int   `json:"position,omitempty"`
	Enabled  bool   `json:"enabled"`
}

// ReorderMenuBody is the request body for reordering the menu
type ReorderMenuBody struct {
	Positions map[string]int `json:"positions"`
}

// GetAdminMenu lists all menu items including disabled ones
func (h *Handler) GetAdminMenu(w http.ResponseWriter, r *http.Request) {
	items, err := h.service.MenuForAdmin(r.Context())
	if err != nil {
		h.renderError(w, r, err)
		return
	}
	render.JSON(w, r, items)
}

// AddMenuItem adds a page to the navigation menu
func (h *Handler) AddMenuItem(w http.ResponseWriter, r *http.Request) {
	var body AddMenuItemBody
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	pageID, err := uuid.Parse(body.PageID)
	if err != nil {
		http.Error(w, "Invalid page ID", http.StatusBadRequest)
		return
	}

	item, err := h.service.AddMenuItem(r.Context(), press.AddMenuItemRequest{
		PageID:   pageID,
		Position: body.Position,
		Enabled:  body.Enabled,
	})
	if err != nil {
		h.renderError(w, r, err)
		return
	}

	render.Status(r, http.StatusCreated)
	render.JSON(w, r, item)
}

// RemoveMenuItem removes a menu item
func (h *Handler) RemoveMenuItem(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		http.Error(w, "Invalid menu item ID", http.StatusBadRequest)
		return
	}

	if err := h.service.RemoveMenuItem(r.Context(), id); err != nil {
		h.renderError(w, r, err)
		return
	}
	render.NoContent(w, r)
}

// SetMenuItemEnabled toggles a menu item's visibility
func (h *Handler) SetMenuItemEnabled(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		http.Error(w, "Invalid menu item ID", http.StatusBadRequest)
		return
	}

	var body struct {
		Enabled bool `json:"enabled"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	item, err := h.service.SetMenuItemEnabled(r.Context(), id, body.Enabled)
	if err != nil {
		h.renderError(w, r, err)
		return
	}
	render.JSON(w, r, item)
}

// ReorderMenu atomically rewrites menu positions
func (h *Handler) ReorderMenu(w http.ResponseWriter, r *http.Request) {
	var body ReorderMenuBody
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	positions := make(map[uuid.UUID]int, len(body.Positions))
	for idStr, pos := range body.Positions {
		id, err := uuid.Parse(idStr)
		if err != nil {
			http.Error(w, "Invalid menu item ID: "+idStr, http.StatusBadRequest)
			return
		}
		positions[id] = pos
	}

	if err := h.service.ReorderMenu(r.Context(), positions); err != nil {
		h.renderError(w, r, err)
		return
	}
	render.NoContent(w, r)
}

// UpdateSettings bulk-updates site settings
func (h *Handler) UpdateSettings(w http.ResponseWriter, r *http.Request) {
	var body map[string]string
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	if err := h.service.UpdateSettings(r.Context(), body); err != nil {
		h.renderError(w, r, err)
		return
	}

	settings, err := h.service.AllSettings(r.Context())
	if err != nil {
		h.renderError(w, r, err)
		return
	}
	render.JSON(w, r, settings)
}

// renderError maps service errors onto HTTP statuses
func (h *Handler) renderError(w http.ResponseWriter, r *http.Request, err error) {
	status := http.StatusInternalServerError
	switch {
	case press.IsValidation(err):
		status = http.StatusUnprocessableEntity
	case errors.Is(err, press.ErrPostableNotFound),
		errors.Is(err, press.ErrMenuItemNotFound),
		errors.Is(err, press.ErrSettingNotFound),
		errors.Is(err, press.ErrNoCoverImage),
		errors.Is(err, press.ErrUnknownVariant):
		status = http.StatusNotFound
	case errors.Is(err, press.ErrSlugTaken),
		errors.Is(err, press.ErrPositionTaken),
		errors.Is(err, press.ErrMenuTargetTaken):
		status = http.StatusConflict
	}

	render.Status(r, status)
	render.JSON(w, r, map[string]string{"error": err.Error()})
}
