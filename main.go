package main

import (
	"context"
	"fmt"
	"io"
	"log"
	"net/http"
	"path/filepath"
	"strings"
	"time"

	"verifai/config"
	"verifai/models"
	"verifai/providers"
	"verifai/providers/arxiv"
	"verifai/providers/crossref"
	"verifai/providers/retractionwatch"
	"verifai/providers/semanticscholar"
	"verifai/services"
	"verifai/storage"
	"verifai/store"

	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

var (
	verificationsCounter *prometheus.CounterVec
	analysesCounter      prometheus.Counter
	messagesCounter      prometheus.Counter
)

func init() {
	verificationsCounter = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "reference_verifications_total",
			Help: "Total number of reference verifications by final status.",
		},
		[]string{"status"},
	)
	analysesCounter = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "paper_analyses_total",
			Help: "Total number of paper analyses performed.",
		},
	)
	messagesCounter = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "chat_messages_persisted_total",
			Help: "Total number of chat messages persisted.",
		},
	)
	prometheus.MustRegister(verificationsCounter, analysesCounter, messagesCounter)
}

func apiKeyAuthMiddleware(cfg *config.Config) gin.HandlerFunc {
	return func(c *gin.Context) {
		if cfg.APISecretKey == "" {
			c.Next()
			return
		}
		apiKey := c.GetHeader("X-API-KEY")
		if apiKey != cfg.APISecretKey {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Unauthorized: Invalid API Key"})
			return
		}
		c.Next()
	}
}

// userID liest die Nutzerkennung aus dem Header. Leer bedeutet: Analyse ohne
// Persistenz.
func userID(c *gin.Context) string {
	return strings.TrimSpace(c.GetHeader("X-User-ID"))
}

func main() {
	logging, err := zap.NewProduction()
	if err != nil {
		log.Fatalf("can't initialize zap logger: %v", err)
	}
	defer logging.Sync()

	cfg, err := config.Load()
	if err != nil {
		logging.Fatal("Config load error", zap.Error(err))
	}

	// Setup Database
	db, err := gorm.Open(postgres.Open(cfg.DSN()), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		logging.Fatal("Failed to connect to database", zap.Error(err))
	}
	logging.Info("Successfully connected to session database.")

	logging.Info("Running database auto-migration...")
	db.AutoMigrate(&models.ChatSession{}, &models.Message{}, &models.Citation{})

	// Setup Event-Bus
	var bus store.Bus
	if cfg.RedisAddr != "" {
		redisBus, err := store.NewRedisBus(cfg.RedisAddr, cfg.RedisChannel, logging)
		if err != nil {
			logging.Fatal("Redis bus creation failed", zap.Error(err))
		}
		bus = redisBus
		logging.Info("Session events via Redis", zap.String("channel", cfg.RedisChannel))
	} else {
		bus = store.NewMemoryBus(logging)
		logging.Info("Session events in-memory only")
	}

	// Setup Sources
	crossrefFetcher := crossref.NewFetcher(cfg, logging)
	semanticFetcher := semanticscholar.NewFetcher(cfg, logging)
	retractionFetcher := retractionwatch.NewFetcher(cfg, logging)

	enabledSourceNames := strings.Split(cfg.EnabledSources, ",")
	var enabledSources []providers.Source
	for _, name := range enabledSourceNames {
		switch strings.TrimSpace(name) {
		case "crossref":
			enabledSources = append(enabledSources, crossrefFetcher)
		case "arxiv":
			enabledSources = append(enabledSources, arxiv.NewFetcher(cfg, logging))
		case "semantic_scholar":
			enabledSources = append(enabledSources, semanticFetcher)
		case "retracted":
			enabledSources = append(enabledSources, retractionFetcher)
		default:
			logging.Warn("Unknown source in config", zap.String("source_name", name))
		}
	}
	if len(enabledSources) == 0 {
		logging.Fatal("No valid sources enabled. Check ENABLED_SOURCES in .env")
	}
	logging.Info("Active sources loaded", zap.Strings("sources", enabledSourceNames))

	// Setup Services
	s3Client, err := storage.NewS3Client(cfg)
	if err != nil {
		logging.Fatal("S3 client creation failed", zap.Error(err))
	}
	verifier := services.NewVerifier(cfg, logging, enabledSources)
	statsEngine := services.NewStatsEngine(verifier, logging)
	analyzer := services.NewAnalyzer(cfg, logging, crossrefFetcher, semanticFetcher, retractionFetcher)
	extractor := services.NewDocumentExtractor(logging)
	sessionStore := store.NewSessionStore(db, logging, bus)
	orchestrator := services.NewChatOrchestrator(logging, sessionStore, analyzer, extractor)

	// Setup Router
	router := gin.Default()
	router.Use(gin.Recovery())
	router.Use(cors.New(cors.Config{
		AllowOrigins:     strings.Split(cfg.CORSOrigins, ","),
		AllowMethods:     []string{"GET", "POST", "PATCH", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "X-API-KEY", "X-User-ID"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}))
	router.Use(apiKeyAuthMiddleware(cfg))
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	// Setup Routes
	setupChatRoutes(router, orchestrator, logging)
	setupAnalysisRoutes(router, analyzer, orchestrator, s3Client, cfg, logging)
	setupVerificationRoutes(router, verifier, statsEngine, logging)
	setupSessionRoutes(router, sessionStore, orchestrator, statsEngine, bus, logging)

	// Setup Cron: nächtlicher Retraction-Abgleich über gespeicherte Zitate
	cronScheduler := cron.New()
	cronScheduler.AddFunc(cfg.CronSchedule, func() {
		logging.Info("Running scheduled retraction sweep...")
		count, err := sweepRetractions(context.Background(), sessionStore, retractionFetcher, logging)
		if err != nil {
			logging.Error("Retraction sweep failed", zap.Error(err))
		} else {
			logging.Info("Retraction sweep completed", zap.Int("newly_retracted", count))
		}
	})
	cronScheduler.Start()

	logging.Info("Starting server", zap.String("port", cfg.HTTPPort))
	srv := &http.Server{
		Addr:              ":" + cfg.HTTPPort,
		Handler:           router,
		ReadTimeout:       30 * time.Second,
		ReadHeaderTimeout: 15 * time.Second,
		WriteTimeout:      60 * time.Second,
		IdleTimeout:       120 * time.Second,
	}
	if err := srv.ListenAndServe(); err != nil {
		logging.Fatal("Failed to run server", zap.Error(err))
	}
}

func setupChatRoutes(router *gin.Engine, orchestrator *services.ChatOrchestrator, log *zap.Logger) {
	router.POST("/api/chat", func(c *gin.Context) {
		var req struct {
			Input string `json:"input"`
		}
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body"})
			return
		}
		if strings.TrimSpace(req.Input) == "" {
			c.JSON(http.StatusBadRequest, gin.H{"error": "input must not be empty"})
			return
		}

		uid := userID(c)
		msg, err := orchestrator.HandleInput(c.Request.Context(), uid, req.Input)
		if err != nil {
			log.Error("Chat input handling failed", zap.Error(err))
			c.JSON(http.StatusInternalServerError, gin.H{"error": "chat processing failed"})
			return
		}
		// Ohne Nutzer wird nichts persistiert, dann zählt der Turn auch nicht.
		if uid != "" {
			messagesCounter.Inc()
		}
		c.JSON(http.StatusOK, msg)
	})
}

func setupAnalysisRoutes(router *gin.Engine, analyzer *services.Analyzer, orchestrator *services.ChatOrchestrator, s3Client *s3.Client, cfg *config.Config, log *zap.Logger) {
	router.POST("/api/analyze-paper", func(c *gin.Context) {
		var req struct {
			Identifier string `json:"identifier"`
		}
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body"})
			return
		}

		analysis, err := analyzer.AnalyzeIdentifier(c.Request.Context(), req.Identifier)
		if err != nil {
			log.Warn("Paper analysis failed",
				zap.String("identifier", req.Identifier), zap.Error(err))
			c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
			return
		}
		analysesCounter.Inc()
		c.JSON(http.StatusOK, analysis)
	})

	router.POST("/api/upload-document", func(c *gin.Context) {
		fileHeader, err := c.FormFile("file")
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "file is required"})
			return
		}
		if fileHeader.Size > cfg.UploadMaxBytes {
			c.JSON(http.StatusRequestEntityTooLarge, gin.H{"error": "file too large"})
			return
		}

		file, err := fileHeader.Open()
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "cannot read file"})
			return
		}
		defer file.Close()
		data, err := io.ReadAll(io.LimitReader(file, cfg.UploadMaxBytes))
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "cannot read file"})
			return
		}

		key := fmt.Sprintf("uploads/%s/%s%s",
			time.Now().Format("2006/01/02"), uuid.NewString(), filepath.Ext(fileHeader.Filename))
		s3Link, err := storage.UploadDocument(c.Request.Context(), s3Client, cfg, key, data)
		if err != nil {
			log.Error("Document upload to S3 failed", zap.Error(err))
			c.JSON(http.StatusInternalServerError, gin.H{"error": "document archiving failed"})
			return
		}

		analysis, _, err := orchestrator.HandleDocument(c.Request.Context(), userID(c), fileHeader.Filename, data, s3Link)
		if err != nil {
			log.Error("Document handling failed", zap.Error(err))
			c.JSON(http.StatusInternalServerError, gin.H{"error": "document processing failed"})
			return
		}
		analysesCounter.Inc()
		c.JSON(http.StatusOK, analysis)
	})
}

func setupVerificationRoutes(router *gin.Engine, verifier *services.Verifier, statsEngine *services.StatsEngine, log *zap.Logger) {
	router.POST("/api/verify-reference", func(c *gin.Context) {
		var req struct {
			Reference models.Reference `json:"reference"`
		}
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body"})
			return
		}

		result := verifier.Verify(c.Request.Context(), &req.Reference)
		verificationsCounter.WithLabelValues(result.Status).Inc()
		c.JSON(http.StatusOK, result)
	})

	router.POST("/api/verify-references", func(c *gin.Context) {
		var req struct {
			References []models.Reference `json:"references"`
		}
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body"})
			return
		}

		stats, err := statsEngine.Summarize(c.Request.Context(), req.References)
		if err != nil {
			if err == services.ErrSummarizeRunning {
				c.JSON(http.StatusConflict, gin.H{"error": "verification batch already running"})
				return
			}
			log.Error("Batch verification failed", zap.Error(err))
			c.JSON(http.StatusInternalServerError, gin.H{"error": "batch verification failed"})
			return
		}
		c.JSON(http.StatusOK, stats)
	})
}

func setupSessionRoutes(router *gin.Engine, sessionStore *store.SessionStore, orchestrator *services.ChatOrchestrator, statsEngine *services.StatsEngine, bus store.Bus, log *zap.Logger) {
	rg := router.Group("/api/sessions")

	rg.GET("", func(c *gin.Context) {
		uid := userID(c)
		if uid == "" {
			c.JSON(http.StatusOK, []models.ChatSession{})
			return
		}
		if _, err := sessionStore.EnsureInitialSession(c.Request.Context(), uid); err != nil {
			log.Error("Ensure initial session failed", zap.Error(err))
			c.JSON(http.StatusInternalServerError, gin.H{"error": "database error"})
			return
		}
		sessions, err := sessionStore.ListSessions(c.Request.Context(), uid)
		if err != nil {
			log.Error("Session listing failed", zap.Error(err))
			c.JSON(http.StatusInternalServerError, gin.H{"error": "database error"})
			return
		}
		if _, ok := orchestrator.ActiveSession(uid); !ok && len(sessions) > 0 {
			orchestrator.SetActiveSession(uid, sessions[0].ID)
		}
		c.JSON(http.StatusOK, sessions)
	})

	rg.POST("", func(c *gin.Context) {
		uid := userID(c)
		if uid == "" {
			c.JSON(http.StatusBadRequest, gin.H{"error": "X-User-ID header is required"})
			return
		}
		var req struct {
			Title string `json:"title"`
		}
		_ = c.ShouldBindJSON(&req)

		session, err := sessionStore.CreateSession(c.Request.Context(), uid, req.Title)
		if err != nil {
			log.Error("Session creation failed", zap.Error(err))
			c.JSON(http.StatusInternalServerError, gin.H{"error": "database error"})
			return
		}
		orchestrator.SetActiveSession(uid, session.ID)
		c.JSON(http.StatusCreated, session)
	})

	rg.PATCH("/:id", func(c *gin.Context) {
		sid, err := uuid.Parse(c.Param("id"))
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid session id"})
			return
		}
		var req struct {
			Title string `json:"title" binding:"required"`
		}
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "title is required"})
			return
		}

		if err := sessionStore.RenameSession(c.Request.Context(), sid, req.Title); err != nil {
			respondStoreError(c, log, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": "renamed"})
	})

	rg.DELETE("/:id", func(c *gin.Context) {
		sid, err := uuid.Parse(c.Param("id"))
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid session id"})
			return
		}
		uid := userID(c)

		if err := sessionStore.DeleteSession(c.Request.Context(), sid); err != nil {
			respondStoreError(c, log, err)
			return
		}
		if uid != "" {
			remaining, err := sessionStore.ListSessions(c.Request.Context(), uid)
			if err == nil {
				orchestrator.SessionDeleted(uid, sid, remaining)
			}
		}
		c.JSON(http.StatusOK, gin.H{"status": "deleted"})
	})

	rg.POST("/:id/reset", func(c *gin.Context) {
		sid, err := uuid.Parse(c.Param("id"))
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid session id"})
			return
		}
		welcome, err := sessionStore.ResetMessages(c.Request.Context(), sid)
		if err != nil {
			respondStoreError(c, log, err)
			return
		}
		c.JSON(http.StatusOK, welcome)
	})

	rg.GET("/:id/messages", func(c *gin.Context) {
		sid, err := uuid.Parse(c.Param("id"))
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid session id"})
			return
		}
		msgs, err := sessionStore.LoadMessages(c.Request.Context(), sid)
		if err != nil {
			respondStoreError(c, log, err)
			return
		}
		c.JSON(http.StatusOK, msgs)
	})

	rg.GET("/:id/citations", func(c *gin.Context) {
		sid, err := uuid.Parse(c.Param("id"))
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid session id"})
			return
		}
		citations, err := sessionStore.LoadCitations(c.Request.Context(), sid)
		if err != nil {
			respondStoreError(c, log, err)
			return
		}
		c.JSON(http.StatusOK, citations)
	})

	rg.POST("/:id/citations", func(c *gin.Context) {
		sid, err := uuid.Parse(c.Param("id"))
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid session id"})
			return
		}
		var citation models.Citation
		if err := c.ShouldBindJSON(&citation); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body"})
			return
		}
		if strings.TrimSpace(citation.Title) == "" {
			c.JSON(http.StatusBadRequest, gin.H{"error": "title is required"})
			return
		}

		if err := sessionStore.AppendCitation(c.Request.Context(), sid, &citation); err != nil {
			respondStoreError(c, log, err)
			return
		}
		c.JSON(http.StatusCreated, citation)
	})

	// Übernimmt die verified-Teilmenge des letzten Stapels als Zitate.
	rg.POST("/:id/citations/save-verified", func(c *gin.Context) {
		sid, err := uuid.Parse(c.Param("id"))
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid session id"})
			return
		}

		refs := statsEngine.VerifiedSubset()
		saved := 0
		for i := range refs {
			citation := models.Citation{
				Title: refs[i].DisplayTitle(),
				DOI:   refs[i].DOI,
			}
			if refs[i].Year != 0 {
				year := refs[i].Year
				citation.Year = &year
			}
			if err := sessionStore.AppendCitation(c.Request.Context(), sid, &citation); err != nil {
				respondStoreError(c, log, err)
				return
			}
			saved++
		}
		c.JSON(http.StatusOK, gin.H{"saved": saved})
	})

	// SSE-Stream der Session-Ereignisse des Nutzers.
	rg.GET("/events", func(c *gin.Context) {
		uid := userID(c)
		if uid == "" {
			c.JSON(http.StatusBadRequest, gin.H{"error": "X-User-ID header is required"})
			return
		}

		ch, unsubscribe := bus.Subscribe(uid)
		defer unsubscribe()

		c.Writer.Header().Set("Content-Type", "text/event-stream")
		c.Writer.Header().Set("Cache-Control", "no-cache")
		c.Writer.Header().Set("Connection", "keep-alive")
		c.Writer.Flush()

		for {
			select {
			case <-c.Request.Context().Done():
				return
			case ev, ok := <-ch:
				if !ok {
					return
				}
				c.SSEvent(string(ev.Type), ev)
				c.Writer.Flush()
			}
		}
	})
}

func respondStoreError(c *gin.Context, log *zap.Logger, err error) {
	if err == store.ErrSessionNotFound {
		c.JSON(http.StatusNotFound, gin.H{"error": "session not found"})
		return
	}
	log.Error("Session store operation failed", zap.Error(err))
	c.JSON(http.StatusInternalServerError, gin.H{"error": "database error"})
}

// sweepRetractions prüft alle gespeicherten Zitate gegen die
// Retraction-Quelle und markiert neu zurückgezogene.
func sweepRetractions(ctx context.Context, sessionStore *store.SessionStore, retraction providers.Source, log *zap.Logger) (int, error) {
	citations, err := sessionStore.AllCitations(ctx)
	if err != nil {
		return 0, err
	}

	count := 0
	for i := range citations {
		if citations[i].Retracted {
			continue
		}
		ref := models.Reference{Title: citations[i].Title, DOI: citations[i].DOI}
		hits, err := retraction.Search(ctx, &ref)
		if err != nil {
			log.Warn("Retraction check failed",
				zap.String("citation_id", citations[i].ID.String()), zap.Error(err))
			continue
		}
		for _, hit := range hits {
			match := (hit.DOI != "" && strings.EqualFold(hit.DOI, citations[i].DOI)) ||
				strings.EqualFold(strings.TrimSpace(hit.Title), strings.TrimSpace(citations[i].Title))
			if !match {
				continue
			}
			if err := sessionStore.MarkCitationRetracted(ctx, citations[i].ID); err != nil {
				log.Error("Marking citation retracted failed", zap.Error(err))
				break
			}
			count++
			break
		}
	}
	return count, nil
}
