package http

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/mrlokans/booktracker/internal/auth"
	"github.com/mrlokans/booktracker/internal/barcode"
	"github.com/mrlokans/booktracker/internal/library"
)

// ScanController adds books from camera snapshots of their barcode.
type ScanController struct {
	library *library.Service
	scanner ScanCapability
	pages   *pages
	log     *zap.Logger
}

func NewScanController(lib *library.Service, scanner ScanCapability, p *pages, log *zap.Logger) *ScanController {
	return &ScanController{library: lib, scanner: scanner, pages: p, log: log.Named("scan")}
}

type scanRequest struct {
	Image string `json:"image"`
}

type ScanResponse struct {
	Success bool   `json:"success"`
	ISBN    string `json:"isbn"`
	Message string `json:"message"`
}

func (sc *ScanController) ScanPage(c *gin.Context) {
	sc.pages.render(c, http.StatusOK, "scan.html", gin.H{
		"Title":     "Scan Barcode",
		"Available": sc.scanner != nil && sc.scanner.Available(),
	})
}

// ScanISBN decodes the posted image and adds the book it names.
func (sc *ScanController) ScanISBN(c *gin.Context) {
	var req scanRequest
	if err := c.ShouldBindJSON(&req); err != nil || strings.TrimSpace(req.Image) == "" {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "No image data provided."})
		return
	}

	result, err := sc.library.ScanBook(c.Request.Context(), auth.GetUserID(c), req.Image)
	if err != nil {
		if errors.Is(err, barcode.ErrNoISBN) {
			sc.log.Info("no ISBN in scanned image", zap.String("user_id", auth.GetUserID(c)))
		}
		status, body := classifyError(err)
		if status == http.StatusInternalServerError {
			respondError(c, sc.log, err, "scan")
			return
		}
		c.JSON(status, ErrorResponse{Error: body.Error})
		return
	}

	c.JSON(http.StatusOK, ScanResponse{
		Success: true,
		ISBN:    result.UserBook.Book.ISBN,
		Message: "Book added. Fetching metadata...",
	})
}
