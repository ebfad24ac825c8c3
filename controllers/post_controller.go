package controllers

import (
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/gobbs/gobbs/config"
	"github.com/gobbs/gobbs/hooks"
	"github.com/gobbs/gobbs/middleware"
	"github.com/gobbs/gobbs/models"
	"github.com/gobbs/gobbs/posts"
	"github.com/gobbs/gobbs/utils"
)

// PostController exposes the post-creation pipeline and the post read path.
type PostController struct {
	db       *gorm.DB
	creator  *posts.Creator
	registry *hooks.Registry
}

// NewPostController creates a new PostController instance.
func NewPostController(db *gorm.DB, creator *posts.Creator, registry *hooks.Registry) *PostController {
	return &PostController{db: db, creator: creator, registry: registry}
}

// CreatePost submits a post through the creation pipeline. Authenticated
// users and guests both land here; guests may carry a display handle.
func (p *PostController) CreatePost(ctx *gin.Context) {
	var req struct {
		TID       int64  `json:"tid" binding:"required"`
		Content   string `json:"content" binding:"required"`
		ToPID     int64  `json:"toPid"`
		Anonymous bool   `json:"anonymous"`
		Handle    string `json:"handle"`
		Timestamp int64  `json:"timestamp"`
	}
	if err := ctx.ShouldBindJSON(&req); err != nil {
		utils.Error(ctx, http.StatusBadRequest, 40020, "invalid request payload")
		return
	}

	content := utils.Sanitize(req.Content)
	if strings.TrimSpace(content) == "" {
		utils.Error(ctx, http.StatusBadRequest, 40021, "content cannot be empty")
		return
	}

	view, err := p.creator.Create(ctx.Request.Context(), posts.CreateRequest{
		Author:    actorIdentity(ctx),
		TID:       req.TID,
		Content:   content,
		Timestamp: req.Timestamp,
		Anonymous: req.Anonymous,
		ToPID:     req.ToPID,
		IP:        ctx.ClientIP(),
		Handle:    strings.TrimSpace(req.Handle),
	})
	if err != nil {
		var fanOut *posts.FanOutError
		switch {
		case errors.Is(err, posts.ErrInvalidUID):
			utils.Error(ctx, http.StatusBadRequest, 40022, "invalid uid")
		case errors.Is(err, posts.ErrInvalidPID):
			utils.Error(ctx, http.StatusBadRequest, 40023, "invalid parent post")
		case errors.As(err, &fanOut):
			// The post exists; secondary state may lag behind.
			utils.Sugar.Errorf("create post: %v", err)
			utils.Error(ctx, http.StatusInternalServerError, 50021, "failed to create post")
		default:
			utils.Sugar.Errorf("create post: %v", err)
			utils.Error(ctx, http.StatusInternalServerError, 50020, "failed to create post")
		}
		return
	}

	// Reply counters changed on the parent; drop its cached detail.
	if req.ToPID != 0 {
		utils.InvalidateByPrefix("cache:post:detail:" + strconv.FormatInt(req.ToPID, 10))
	}

	utils.Success(ctx, gin.H{"post": view})
}

// GetPost returns a single post, hook-filtered and cached.
func (p *PostController) GetPost(ctx *gin.Context) {
	pidStr := ctx.Param("id")
	pid, err := strconv.ParseInt(pidStr, 10, 64)
	if err != nil || pid <= 0 {
		utils.Error(ctx, http.StatusBadRequest, 40030, "invalid post id")
		return
	}

	if b, ok := utils.CacheGetBytes("cache:post:detail:" + pidStr); ok {
		ctx.Data(200, "application/json", b)
		return
	}

	var post models.Post
	if err := p.db.WithContext(ctx.Request.Context()).Where("pid = ?", pid).Take(&post).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			utils.Error(ctx, http.StatusNotFound, 40401, "post not found")
			return
		}
		utils.Error(ctx, http.StatusInternalServerError, 50030, "failed to load post")
		return
	}

	payload := hooks.Payload{Post: &post, UID: actorIdentity(ctx).UID()}
	if err := p.registry.ApplyFilters(ctx.Request.Context(), hooks.FilterPostGet, &payload); err != nil {
		utils.Error(ctx, http.StatusInternalServerError, 50031, "failed to load post")
		return
	}

	data := gin.H{"post": payload.Post}
	utils.CacheSetJSON("cache:post:detail:"+pidStr, utils.JSONResponse{Code: 0, Message: "success", Data: data}, time.Hour)
	utils.Success(ctx, data)
}

// UploadAttachment stores an uploaded file and records it for later linking
// to the post that references it.
func (p *PostController) UploadAttachment(ctx *gin.Context) {
	uid, ok := authedUID(ctx)
	if !ok {
		utils.Error(ctx, http.StatusUnauthorized, 40113, "unauthorized")
		return
	}

	file, header, err := ctx.Request.FormFile("file")
	if err != nil {
		utils.Error(ctx, http.StatusBadRequest, 40040, "no file uploaded")
		return
	}
	defer file.Close()

	const maxSize = 50 * 1024 * 1024
	if header.Size > maxSize {
		utils.Error(ctx, http.StatusBadRequest, 40041, "file size exceeds 50MB")
		return
	}

	now := time.Now()
	baseDir := filepath.Join(".", "static", "uploads", now.Format("2006"), now.Format("01"), now.Format("02"))
	if err := os.MkdirAll(baseDir, 0o755); err != nil {
		utils.Error(ctx, http.StatusInternalServerError, 50040, "failed to create upload directory")
		return
	}

	name := uuid.NewString()
	if ext := filepath.Ext(filepath.Base(header.Filename)); ext != "" {
		name += ext
	}
	dstPath := filepath.Join(baseDir, name)

	out, err := os.Create(dstPath)
	if err != nil {
		utils.Error(ctx, http.StatusInternalServerError, 50041, "failed to save file")
		return
	}
	defer out.Close()

	lr := &io.LimitedReader{R: file, N: maxSize + 1}
	written, err := io.Copy(out, lr)
	if err != nil || written > maxSize {
		_ = out.Close()
		_ = os.Remove(dstPath)
		if err != nil {
			utils.Error(ctx, http.StatusInternalServerError, 50042, "failed to write file")
		} else {
			utils.Error(ctx, http.StatusBadRequest, 40041, "file size exceeds 50MB")
		}
		return
	}

	relURL := fmt.Sprintf("/static/uploads/%s/%s/%s/%s", now.Format("2006"), now.Format("01"), now.Format("02"), name)
	ttl := time.Duration(config.Get().UploadsSelfDestructMinutes) * time.Minute
	absPath, _ := filepath.Abs(dstPath)
	record := models.UploadedFile{FilePath: absPath, URL: relURL, ExpireAt: now.Add(ttl)}
	if err := p.db.Create(&record).Error; err != nil {
		utils.Sugar.Warnf("failed to record upload for uid %d: %v", uid, err)
	}

	utils.Success(ctx, gin.H{"url": relURL})
}

// actorIdentity resolves the posting identity from the request context. No
// authenticated uid means a guest submission, which the pipeline accepts.
func actorIdentity(ctx *gin.Context) posts.Identity {
	if uid, ok := authedUID(ctx); ok {
		if uid == 0 {
			return posts.Guest()
		}
		return posts.Authenticated(uid)
	}
	return posts.Guest()
}

func authedUID(ctx *gin.Context) (int64, bool) {
	value, exists := ctx.Get(middleware.ContextUIDKey)
	if !exists {
		return 0, false
	}
	uid, ok := value.(int64)
	return uid, ok
}
