package handlers

import (
	"errors"
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/example/skinscan/internal/analysis"
	"github.com/example/skinscan/internal/catalog"
	"github.com/example/skinscan/internal/repository"
	"github.com/example/skinscan/internal/usecase"
)

// MaxUploadSize is the largest photo accepted by /analyze.
const MaxUploadSize = 10 << 20

// multipartOverhead leaves room for form boundaries and headers around the photo.
const multipartOverhead = 1 << 20

// RegisterRoutes wires the HTTP handlers to the Gin router.
func RegisterRoutes(router *gin.Engine, analyses *usecase.AnalysisUseCase, journal *usecase.JournalUseCase) {
	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok", "model_source": analyses.ModelSource()})
	})

	router.POST("/analyze", func(c *gin.Context) {
		data, status, err := readPhoto(c)
		if err != nil {
			c.JSON(status, gin.H{"error": err.Error()})
			return
		}

		report, err := analyses.Analyze(c.Request.Context(), data)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}

		c.JSON(http.StatusOK, report)
	})

	router.GET("/result/:id", func(c *gin.Context) {
		report, err := analyses.GetResult(c.Request.Context(), c.Param("id"))
		if err != nil {
			writeLookupError(c, err)
			return
		}
		c.JSON(http.StatusOK, report)
	})

	router.GET("/result/:id/transport", func(c *gin.Context) {
		transport, err := analyses.GetTransport(c.Request.Context(), c.Param("id"))
		if err != nil {
			writeLookupError(c, err)
			return
		}
		c.Data(http.StatusOK, "application/json; charset=utf-8", []byte(transport))
	})

	router.GET("/result/:id/duplicates", func(c *gin.Context) {
		report, err := analyses.GetDuplicateReport(c.Request.Context(), c.Param("id"))
		if err != nil {
			writeLookupError(c, err)
			return
		}

		duplicates := make([]gin.H, 0, len(report.Duplicates))
		for _, d := range report.Duplicates {
			duplicates = append(duplicates, gin.H{
				"analysis_id": d.AnalysisID,
				"skin_type":   d.SkinType,
				"source":      d.Source,
				"created_at":  d.CreatedAt,
			})
		}

		c.JSON(http.StatusOK, gin.H{
			"analysis_id": report.Request.AnalysisID,
			"sha1_hash":   report.Request.SHA1Hash,
			"duplicates":  duplicates,
		})
	})

	router.GET("/metrics", func(c *gin.Context) {
		summary, err := analyses.GetMetricsSummary(c.Request.Context())
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, summary)
	})

	router.GET("/products", func(c *gin.Context) {
		skinType, ok := analysis.ParseSkinType(c.Query("skinType"))
		if !ok {
			c.JSON(http.StatusBadRequest, gin.H{"error": "unknown skinType"})
			return
		}

		products := catalog.Products(skinType)
		if raw := c.Query("limit"); raw != "" {
			limit, err := strconv.Atoi(raw)
			if err != nil || limit <= 0 {
				c.JSON(http.StatusBadRequest, gin.H{"error": "limit must be a positive integer"})
				return
			}
			products = catalog.Recommend(skinType, limit, nil)
		}

		c.JSON(http.StatusOK, gin.H{"skin_type": skinType, "products": products})
	})

	router.GET("/dermatologists", func(c *gin.Context) {
		c.JSON(http.StatusOK, catalog.Dermatologists())
	})

	router.GET("/dermatologists/:id", func(c *gin.Context) {
		id, err := strconv.Atoi(c.Param("id"))
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid id"})
			return
		}
		d, ok := catalog.FindDermatologist(id)
		if !ok {
			c.JSON(http.StatusNotFound, gin.H{"error": "dermatologist not found"})
			return
		}
		c.JSON(http.StatusOK, d)
	})

	registerJournalRoutes(router, journal)
}

type journalRequest struct {
	ProductName string `json:"product_name"`
	Duration    string `json:"duration"`
	Helpful     bool   `json:"helpful"`
}

func registerJournalRoutes(router *gin.Engine, journal *usecase.JournalUseCase) {
	router.GET("/journal", func(c *gin.Context) {
		entries, err := journal.List(c.Request.Context())
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, entries)
	})

	router.POST("/journal", func(c *gin.Context) {
		var req journalRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
			return
		}

		entry, err := journal.Create(c.Request.Context(), req.ProductName, req.Duration, req.Helpful)
		if err != nil {
			writeJournalError(c, err)
			return
		}
		c.JSON(http.StatusCreated, entry)
	})

	router.PUT("/journal/:id", func(c *gin.Context) {
		id, ok := journalID(c)
		if !ok {
			return
		}

		var req journalRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
			return
		}

		entry, err := journal.Update(c.Request.Context(), id, req.ProductName, req.Duration, req.Helpful)
		if err != nil {
			writeJournalError(c, err)
			return
		}
		c.JSON(http.StatusOK, entry)
	})

	router.DELETE("/journal/:id", func(c *gin.Context) {
		id, ok := journalID(c)
		if !ok {
			return
		}

		if err := journal.Delete(c.Request.Context(), id); err != nil {
			writeJournalError(c, err)
			return
		}
		c.Status(http.StatusNoContent)
	})
}

// readPhoto returns the uploaded photo, or nil when the request carries none.
func readPhoto(c *gin.Context) ([]byte, int, error) {
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, MaxUploadSize+multipartOverhead)

	file, err := c.FormFile("image")
	if err != nil {
		var tooLarge *http.MaxBytesError
		switch {
		case errors.Is(err, http.ErrMissingFile), errors.Is(err, http.ErrNotMultipart):
			return nil, http.StatusOK, nil
		case errors.As(err, &tooLarge):
			return nil, http.StatusRequestEntityTooLarge, errors.New("image exceeds upload limit")
		default:
			return nil, http.StatusBadRequest, errors.New("invalid multipart form")
		}
	}

	if file.Size > MaxUploadSize {
		return nil, http.StatusRequestEntityTooLarge, errors.New("image exceeds upload limit")
	}

	if contentType := file.Header.Get("Content-Type"); !strings.HasPrefix(contentType, "image/") {
		return nil, http.StatusUnsupportedMediaType, errors.New("image must have an image/* content type")
	}

	src, err := file.Open()
	if err != nil {
		return nil, http.StatusBadRequest, errors.New("unable to open image")
	}
	defer src.Close()

	data, err := io.ReadAll(src)
	if err != nil {
		return nil, http.StatusInternalServerError, errors.New("failed to read image")
	}
	return data, http.StatusOK, nil
}

func writeLookupError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, usecase.ErrAnalysisPending):
		c.JSON(http.StatusAccepted, gin.H{"status": "processing"})
	case errors.Is(err, repository.ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "result not found"})
	default:
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
	}
}

func writeJournalError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, usecase.ErrInvalidJournalEntry):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	case errors.Is(err, repository.ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "journal entry not found"})
	default:
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
	}
}

func journalID(c *gin.Context) (uint, bool) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil || id == 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid id"})
		return 0, false
	}
	return uint(id), true
}
