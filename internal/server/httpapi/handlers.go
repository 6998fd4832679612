package httpapi

import (
	"errors"
	"mime"
	"net/http"
	"strconv"

	"github.com/dmitrijs2005/linkvault/internal/common"
	"github.com/dmitrijs2005/linkvault/internal/server/models"
	"github.com/dmitrijs2005/linkvault/internal/server/services"
	units "github.com/docker/go-units"
	"github.com/labstack/echo/v4"
)

const unavailable = "link unavailable"

func objectJSON(o *models.StoredObject) echo.Map {
	return echo.Map{
		"id":         o.ID,
		"name":       o.Name,
		"size":       o.Size,
		"size_human": units.HumanSize(float64(o.Size)),
		"created_at": o.CreatedAt,
		"expires_at": o.ExpiresAt,
	}
}

// writeError renders service errors. Unknown and expired links produce the
// same response.
func (s *Server) writeError(c echo.Context, err error) error {
	switch {
	case errors.Is(err, common.ErrorNotFound), errors.Is(err, common.ErrInvalidLink), errors.Is(err, common.ErrLinkExpired):
		return c.JSON(http.StatusGone, echo.Map{"error": unavailable})
	case errors.Is(err, common.ErrorUnauthorized):
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "authorization required"})
	case errors.Is(err, common.ErrorForbidden):
		return c.JSON(http.StatusForbidden, echo.Map{"error": "forbidden"})
	case errors.Is(err, common.ErrQuotaExceeded):
		return c.JSON(http.StatusForbidden, echo.Map{"error": "quota exceeded"})
	case errors.Is(err, common.ErrorValidation):
		return c.JSON(http.StatusBadRequest, echo.Map{"error": err.Error()})
	default:
		s.logger.Error(c.Request().Context(), "request failed", "path", c.Path(), "error", err)
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "internal error"})
	}
}

func (s *Server) upload(c echo.Context) error {
	fh, err := c.FormFile("file")
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "missing file"})
	}

	f, err := fh.Open()
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "unreadable file"})
	}
	defer f.Close()

	obj, err := s.objects.Create(c.Request().Context(), owner(c), fh.Filename, f)
	if err != nil {
		return s.writeError(c, err)
	}

	return c.JSON(http.StatusCreated, echo.Map{"status": "ok", "object": objectJSON(obj)})
}

// resolve loads an active link or renders the unavailable response.
func (s *Server) resolve(c echo.Context) (*services.Resolution, error) {
	res, err := s.links.Resolve(c.Request().Context(), c.Param("token"))
	if err != nil {
		return nil, s.writeError(c, err)
	}
	if !res.Active {
		return nil, c.JSON(http.StatusGone, echo.Map{"error": unavailable})
	}
	return res, nil
}

func (s *Server) linkInfo(c echo.Context) error {
	res, err := s.resolve(c)
	if res == nil {
		return err
	}

	return c.JSON(http.StatusOK, echo.Map{
		"object":        objectJSON(res.Object),
		"kind":          string(res.Link.Kind),
		"expires_at":    res.Link.ExpiresAt,
		"code_required": res.Link.Kind == models.LinkProtected,
		"download_url":  "/s/" + res.Link.Token + "/now/",
	})
}

func (s *Server) download(c echo.Context) error {
	res, err := s.resolve(c)
	if res == nil {
		return err
	}

	if err := s.links.Authorize(res.Link, c.QueryParam("code")); err != nil {
		return c.JSON(http.StatusForbidden, echo.Map{"error": "access code required"})
	}

	rc, err := s.objects.Open(c.Request().Context(), res.Object)
	if err != nil {
		return s.writeError(c, err)
	}
	defer rc.Close()

	h := c.Response().Header()
	h.Set(echo.HeaderContentDisposition, mime.FormatMediaType("attachment", map[string]string{"filename": res.Object.Name}))
	h.Set(echo.HeaderContentLength, strconv.FormatInt(res.Object.Size, 10))
	return c.Stream(http.StatusOK, echo.MIMEOctetStream, rc)
}

// callbackRequest carries the provider's checkout result, as form fields or
// JSON. The signature is left to Confirm so that a bad one fails the order.
type callbackRequest struct {
	OrderID   string `json:"razorpay_order_id" form:"razorpay_order_id" validate:"required,max=64"`
	PaymentID string `json:"razorpay_payment_id" form:"razorpay_payment_id" validate:"required,max=64"`
	Signature string `json:"razorpay_signature" form:"razorpay_signature" validate:"max=256"`
}

func (s *Server) paymentCallback(c echo.Context) error {
	var req callbackRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "malformed callback"})
	}
	if err := c.Validate(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": err.Error()})
	}

	txn, err := s.payments.Confirm(c.Request().Context(), services.Callback{
		OrderID:   req.OrderID,
		PaymentID: req.PaymentID,
		Signature: req.Signature,
	})
	switch {
	case err == nil:
		return c.JSON(http.StatusOK, echo.Map{"order_id": txn.OrderID, "status": string(txn.Status)})
	case errors.Is(err, common.ErrSignatureInvalid):
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "payment signature invalid"})
	case errors.Is(err, common.ErrorNotFound):
		return c.JSON(http.StatusNotFound, echo.Map{"error": "unknown order"})
	default:
		return s.writeError(c, err)
	}
}
