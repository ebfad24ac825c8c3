package main

import (
	"time"

	"github.com/gobbs/gobbs/config"
	"github.com/gobbs/gobbs/hooks"
	"github.com/gobbs/gobbs/models"
	"github.com/gobbs/gobbs/posts"
	"github.com/gobbs/gobbs/routes"
	"github.com/gobbs/gobbs/stores"
	"github.com/gobbs/gobbs/utils"
)

func main() {
	cfg := config.Load()

	// Initialize logger early
	if err := utils.InitLogger(cfg); err != nil {
		panic(err)
	}

	db := config.InitDatabase(
		&models.User{}, &models.Thread{}, &models.Category{},
		&models.Group{}, &models.GroupMember{},
		&models.Post{}, &models.UploadedFile{},
	)
	rdb := utils.GetRedis()

	registry := hooks.New(utils.Sugar)
	creator := posts.NewCreator(posts.Deps{
		Database:       stores.NewKeyValue(rdb),
		Posts:          stores.NewPosts(db),
		Users:          stores.NewUsers(db),
		Threads:        stores.NewThreads(db),
		Categories:     stores.NewCategories(db),
		Groups:         stores.NewGroups(db, rdb),
		Privileges:     stores.NewPrivileges(db),
		Uploads:        stores.NewUploads(db),
		Mailer:         utils.NotificationMailer{},
		Hooks:          registry,
		TrackIPPerPost: cfg.TrackIPPerPost,
		Log:            utils.Sugar,
	})

	r := routes.SetupRouter(db, creator, registry)

	// Best-effort cleanup of expired, unlinked uploads
	utils.StartUploadCleaner(5 * time.Minute)

	utils.Sugar.Infof("Starting server on port %s (graceful)", cfg.AppPort)
	if err := utils.GraceServer(":"+cfg.AppPort, r); err != nil {
		utils.Sugar.Fatalf("server stopped with error: %v", err)
	}
}
