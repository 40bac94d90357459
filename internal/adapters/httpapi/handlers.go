package httpapi

import (
	"io"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"tissuecore/internal/core"
	"tissuecore/pkg/domain"
)

// bind decodes the JSON body into req, failing the request when it can not.
func (s *server) bind(c *gin.Context, req any) bool {
	if err := c.ShouldBindJSON(req); err != nil {
		s.fail(c, badRequest("The request body could not be read.", err))
		return false
	}
	return true
}

// userOf returns the acting user. The header wins over a user named in the
// body.
func userOf(c *gin.Context, fallback string) string {
	if u := c.GetHeader(UserHeader); u != "" {
		return u
	}
	return fallback
}

func (s *server) release(c *gin.Context) {
	var req core.ReleaseRequest
	if !s.bind(c, &req) {
		return
	}
	req.User = userOf(c, req.User)
	committed, err := s.svc.Release.Release(c.Request.Context(), req)
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, committed.Finish(c.Request.Context()))
}

func (s *server) destroy(c *gin.Context) {
	var req core.DestroyRequest
	if !s.bind(c, &req) {
		return
	}
	req.User = userOf(c, req.User)
	committed, err := s.svc.Destroy.Destroy(c.Request.Context(), req)
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, committed.Finish(c.Request.Context()))
}

func (s *server) cleanOut(c *gin.Context) {
	var req core.CleanOutRequest
	if !s.bind(c, &req) {
		return
	}
	req.User = userOf(c, req.User)
	s.respond(c)(s.svc.CleanOut.CleanOut(c.Request.Context(), req))
}

func (s *server) slotCopy(c *gin.Context) {
	var req core.SlotCopyRequest
	if !s.bind(c, &req) {
		return
	}
	req.User = userOf(c, req.User)
	s.respond(c)(s.svc.SlotCopy.Copy(c.Request.Context(), req))
}

func (s *server) reagentTransfer(c *gin.Context) {
	var req core.ReagentTransferRequest
	if !s.bind(c, &req) {
		return
	}
	req.User = userOf(c, req.User)
	s.respond(c)(s.svc.Reagents.Transfer(c.Request.Context(), req))
}

func (s *server) plan(c *gin.Context) {
	var req core.PlanRequest
	if !s.bind(c, &req) {
		return
	}
	req.User = userOf(c, req.User)
	res, err := s.svc.Plans.Plan(c.Request.Context(), req)
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, res)
}

func (s *server) confirmSection(c *gin.Context) {
	var req core.ConfirmSectionRequest
	if !s.bind(c, &req) {
		return
	}
	req.User = userOf(c, req.User)
	s.respond(c)(s.svc.ConfirmSection.Confirm(c.Request.Context(), req))
}

func (s *server) respond(c *gin.Context) func(core.RequestResult, error) {
	return func(res core.RequestResult, err error) {
		if err != nil {
			s.fail(c, err)
			return
		}
		c.JSON(http.StatusOK, res)
	}
}

type cleanedOutRequest struct {
	Barcodes []string `json:"barcodes"`
}

// CleanedOutSlot names one slot emptied by a clean out.
type CleanedOutSlot struct {
	Barcode string `json:"barcode"`
	Address string `json:"address"`
}

func (s *server) cleanedOutSlots(c *gin.Context) {
	var req cleanedOutRequest
	if !s.bind(c, &req) {
		return
	}
	ctx := c.Request.Context()
	labware, err := s.svc.FindLabware(ctx, req.Barcodes)
	if err != nil {
		s.fail(c, err)
		return
	}
	barcodes := make(map[string]string, len(labware))
	for _, lw := range labware {
		barcodes[lw.ID] = lw.Barcode
	}
	slots, err := s.svc.Slots.FindCleanedOutSlots(ctx, labware)
	if err != nil {
		s.fail(c, err)
		return
	}
	out := make([]CleanedOutSlot, 0, len(slots))
	for _, slot := range slots {
		out = append(out, CleanedOutSlot{Barcode: barcodes[slot.LabwareID], Address: slot.Address.String()})
	}
	c.JSON(http.StatusOK, out)
}

func (s *server) listFiles(c *gin.Context) {
	files, err := s.svc.Files.List(c.Request.Context(), c.Param("work"))
	if err != nil {
		s.fail(c, err)
		return
	}
	if files == nil {
		files = []domain.StoredFile{}
	}
	c.JSON(http.StatusOK, files)
}

func (s *server) uploadFile(c *gin.Context) {
	header, err := c.FormFile("file")
	if err != nil {
		s.fail(c, badRequest("No file was uploaded.", err))
		return
	}
	f, err := header.Open()
	if err != nil {
		s.fail(c, err)
		return
	}
	defer f.Close()
	contentType := header.Header.Get("Content-Type")
	stored, err := s.svc.Files.Save(c.Request.Context(), userOf(c, ""), c.Param("work"), header.Filename, contentType, f)
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, stored)
}

func (s *server) downloadFile(c *gin.Context) {
	stored, body, err := s.svc.Files.Lookup(c.Request.Context(), c.Param("id"))
	if err != nil {
		s.fail(c, err)
		return
	}
	defer body.Close()
	contentType := stored.ContentType
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	c.Header("Content-Disposition", "attachment; filename="+strconv.Quote(stored.Name))
	c.Header("Content-Type", contentType)
	c.Status(http.StatusOK)
	if _, err := io.Copy(c.Writer, body); err != nil {
		s.logger.Warnw("file download interrupted", "file", stored.ID, "error", err)
	}
}

type adminKey struct {
	Key string `json:"key"`
}

type adminEnabled struct {
	Enabled bool `json:"enabled"`
}

func registerAdmin[T any](g *gin.RouterGroup, path string, svc *core.AdminService[T], s *server) {
	g.GET("/"+path, func(c *gin.Context) {
		includeDisabled, _ := strconv.ParseBool(c.Query("includeDisabled"))
		items, err := svc.List(c.Request.Context(), includeDisabled)
		if err != nil {
			s.fail(c, err)
			return
		}
		if items == nil {
			items = []T{}
		}
		c.JSON(http.StatusOK, items)
	})
	g.POST("/"+path, func(c *gin.Context) {
		var req adminKey
		if !s.bind(c, &req) {
			return
		}
		item, err := svc.Add(c.Request.Context(), userOf(c, ""), req.Key)
		if err != nil {
			s.fail(c, err)
			return
		}
		c.JSON(http.StatusCreated, item)
	})
	g.PUT("/"+path+"/:key/enabled", func(c *gin.Context) {
		var req adminEnabled
		if !s.bind(c, &req) {
			return
		}
		item, err := svc.SetEnabled(c.Request.Context(), userOf(c, ""), c.Param("key"), req.Enabled)
		if err != nil {
			s.fail(c, err)
			return
		}
		c.JSON(http.StatusOK, item)
	})
}
