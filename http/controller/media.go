package controller

import (
	"encoding/json"
	"errors"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/tnqbao/gau-media-service/entity"
	"github.com/tnqbao/gau-media-service/http/controller/dto"
	"github.com/tnqbao/gau-media-service/media"
	"github.com/tnqbao/gau-media-service/utils"
)

// owner builds the owner of the request from the collection registry. It
// writes a 404 and returns false for unknown owner types.
func (ctrl *Controller) owner(c *gin.Context) (media.OwnerRef, bool) {
	ownerType := strings.ToLower(strings.TrimSpace(c.Param("owner_type")))
	ownerID := strings.TrimSpace(c.Param("owner_id"))

	def, ok := ctrl.Config.Collections.Owner(ownerType)
	if !ok {
		ctrl.Infra.Logger.WarningWithContextf(c.Request.Context(), "[Media] Unknown owner type: %s", ownerType)
		utils.JSON404(c, "Unknown owner type")
		return media.OwnerRef{}, false
	}
	if ownerID == "" {
		utils.JSON400(c, "Owner ID is required")
		return media.OwnerRef{}, false
	}

	return media.OwnerRef{Type: ownerType, ID: ownerID, Collections: def.Collections}, true
}

// ownerExists checks the owning row when the owner type declares its table.
func (ctrl *Controller) ownerExists(c *gin.Context, owner media.OwnerRef) bool {
	def, _ := ctrl.Config.Collections.Owner(owner.Type)
	if def.Table == "" || ctrl.Repository == nil {
		return true
	}

	ctx := c.Request.Context()
	exists, err := ctrl.Repository.OwnerRepo.Exists(ctx, def.Table, def.Key, owner.ID)
	if err != nil {
		ctrl.Infra.Logger.ErrorWithContextf(ctx, err, "[Media] Failed to check owner %s %s: %v", owner.Type, owner.ID, err)
		utils.JSON500(c, "Failed to check owner")
		return false
	}
	if !exists {
		utils.JSON404(c, "Owner not found")
		return false
	}
	return true
}

func (ctrl *Controller) AttachMedia(c *gin.Context) {
	ctx := c.Request.Context()
	owner, ok := ctrl.owner(c)
	if !ok || !ctrl.ownerExists(c, owner) {
		return
	}
	collection := c.Param("collection")

	if max := ctrl.Config.EnvConfig.Media.MaxUploadSize; max > 0 {
		c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, max)
	}

	var req dto.AttachMediaRequest
	if err := c.ShouldBind(&req); err != nil {
		ctrl.rejectPayload(c, err)
		return
	}

	var input any
	if c.ContentType() == gin.MIMEMultipartPOSTForm {
		if raw := c.PostForm("metadata"); raw != "" {
			if err := json.Unmarshal([]byte(raw), &req.Metadata); err != nil {
				utils.JSON400(c, "Metadata must be a JSON object")
				return
			}
		}

		upload, cleanup, err := ctrl.saveUpload(c)
		if err != nil {
			ctrl.rejectPayload(c, err)
			return
		}
		if upload != nil {
			defer cleanup()
			input = upload
		}
	}
	if input == nil {
		if strings.TrimSpace(req.URL) == "" {
			utils.JSON400(c, "Either a file or a url is required")
			return
		}
		input = strings.TrimSpace(req.URL)
	}

	ctrl.Infra.Logger.InfoWithContextf(ctx, "[Media] Attaching to %s/%s collection %s (replace=%t, keep_name=%t)",
		owner.Type, owner.ID, collection, req.Replace, req.KeepName)

	var opts []media.CollectionOption
	if req.Name != "" {
		opts = append(opts, media.WithName(req.Name))
	}
	if req.Path != "" {
		opts = append(opts, media.WithPath(req.Path))
	}
	if req.Metadata != nil {
		opts = append(opts, media.WithMetadata(req.Metadata))
	}

	records, err := ctrl.Media.Attach(owner, input).
		ReplaceExisting(req.Replace).
		KeepOriginalName(req.KeepName).
		ToCollection(ctx, collection, opts...)
	if err != nil {
		if len(records) > 0 {
			ctrl.Infra.Logger.WarningWithContextf(ctx, "[Media] %d variant(s) of %s/%s collection %s were stored before the failure",
				len(records), owner.Type, owner.ID, collection)
		}
		ctrl.respondMediaError(c, err)
		return
	}

	for i := range records {
		records[i].URL = ctrl.Media.ResolveURL(ctx, &records[i])
	}

	ctrl.Infra.Logger.InfoWithContextf(ctx, "[Media] Stored %d variant(s) for %s/%s collection %s",
		len(records), owner.Type, owner.ID, collection)
	utils.JSON201(c, gin.H{
		"message": "Media attached successfully",
		"media":   records,
	})
}

// saveUpload copies the multipart "file" part into a temp file. It returns a
// nil upload when the form carries no file.
func (ctrl *Controller) saveUpload(c *gin.Context) (*media.Upload, func(), error) {
	header, err := c.FormFile("file")
	if err != nil {
		if errors.Is(err, http.ErrMissingFile) {
			return nil, func() {}, nil
		}
		return nil, nil, err
	}

	tmp, err := os.CreateTemp(ctrl.Config.EnvConfig.Media.TempDir, "upload-*"+filepath.Ext(header.Filename))
	if err != nil {
		return nil, nil, err
	}
	path := tmp.Name()
	_ = tmp.Close()
	cleanup := func() { _ = os.Remove(path) }

	if err := c.SaveUploadedFile(header, path); err != nil {
		cleanup()
		return nil, nil, err
	}
	return media.NewUpload(path, header.Filename, header.Header.Get("Content-Type")), cleanup, nil
}

func (ctrl *Controller) ListMedia(c *gin.Context) {
	ctx := c.Request.Context()
	owner, ok := ctrl.owner(c)
	if !ok {
		return
	}
	collection := c.Param("collection")

	records, err := ctrl.Media.GetCollection(ctx, owner, collection)
	if err != nil {
		ctrl.respondMediaError(c, err)
		return
	}

	utils.JSON200(c, gin.H{
		"collection": collection,
		"media":      records,
	})
}

func (ctrl *Controller) GetMediaURL(c *gin.Context) {
	ctx := c.Request.Context()
	owner, ok := ctrl.owner(c)
	if !ok {
		return
	}

	record, err := ctrl.Media.Find(ctx, owner, c.Param("collection"), c.Query("extension"))
	if err != nil {
		ctrl.respondMediaError(c, err)
		return
	}

	utils.JSON200(c, gin.H{
		"url":       record.URL,
		"extension": record.Extension,
		"size":      record.Size,
		"metadata":  record.Metadata,
	})
}

func (ctrl *Controller) ClearCollection(c *gin.Context) {
	ctx := c.Request.Context()
	owner, ok := ctrl.owner(c)
	if !ok {
		return
	}
	collection := c.Param("collection")

	removed, err := ctrl.Media.ClearCollection(ctx, owner, collection, c.QueryArray("extension")...)
	if err != nil {
		ctrl.respondMediaError(c, err)
		return
	}

	ctrl.Infra.Logger.InfoWithContextf(ctx, "[Media] Cleared %d record(s) from %s/%s collection %s", removed, owner.Type, owner.ID, collection)
	utils.JSON200(c, gin.H{"deleted": removed})
}

func (ctrl *Controller) DeleteMedia(c *gin.Context) {
	ctx := c.Request.Context()
	owner, ok := ctrl.owner(c)
	if !ok {
		return
	}

	if err := ctrl.Media.Remove(ctx, owner, c.Param("collection"), c.Param("extension")); err != nil {
		ctrl.respondMediaError(c, err)
		return
	}

	utils.JSON200(c, gin.H{"deleted": 1})
}

// DeleteOwnerMedia cascades an owner delete. Without force=true nothing is
// removed, mirroring a soft delete of the owner.
func (ctrl *Controller) DeleteOwnerMedia(c *gin.Context) {
	ctx := c.Request.Context()
	owner, ok := ctrl.owner(c)
	if !ok {
		return
	}

	force := false
	if raw := c.Query("force"); raw != "" {
		parsed, err := strconv.ParseBool(raw)
		if err != nil {
			utils.JSON400(c, "force must be a boolean")
			return
		}
		force = parsed
	}

	removed, err := ctrl.Media.OwnerDeleted(ctx, owner, force)
	if err != nil {
		ctrl.respondMediaError(c, err)
		return
	}

	ctrl.Infra.Logger.InfoWithContextf(ctx, "[Media] Owner %s/%s deleted (force=%t), removed %d record(s)", owner.Type, owner.ID, force, removed)
	utils.JSON200(c, gin.H{"deleted": removed, "force": force})
}

func (ctrl *Controller) respondMediaError(c *gin.Context, err error) {
	ctx := c.Request.Context()
	switch {
	case errors.Is(err, media.ErrNotFound):
		utils.JSON404(c, err.Error())
	case errors.Is(err, media.ErrValidation):
		ctrl.Infra.Logger.WarningWithContextf(ctx, "[Media] Validation failed: %v", err)
		utils.JSON422(c, err.Error())
	case errors.Is(err, media.ErrConfiguration):
		ctrl.Infra.Logger.WarningWithContextf(ctx, "[Media] Configuration error: %v", err)
		utils.JSON400(c, err.Error())
	case errors.Is(err, media.ErrRemoteFetch):
		ctrl.Infra.Logger.ErrorWithContextf(ctx, err, "[Media] Remote fetch failed: %v", err)
		utils.JSON502(c, err.Error())
	default:
		ctrl.Infra.Logger.ErrorWithContextf(ctx, err, "[Media] Request failed: %v", err)
		utils.JSON500(c, "Failed to process media")
	}
}

func (ctrl *Controller) rejectPayload(c *gin.Context, err error) {
	var tooLarge *http.MaxBytesError
	if errors.As(err, &tooLarge) {
		utils.JSON413(c, "Upload exceeds the maximum size of "+utils.FormatBytes(tooLarge.Limit))
		return
	}
	ctrl.Infra.Logger.WarningWithContextf(c.Request.Context(), "[Media] Invalid request payload: %v", err)
	utils.JSON400(c, "Invalid request payload")
}

// mediaKinds is reported by the health endpoint so clients can see which
// extensions each kind accepts.
func mediaKinds() gin.H {
	out := gin.H{}
	for _, kind := range entity.Kinds {
		out[string(kind)] = media.Extensions(kind)
	}
	return out
}
