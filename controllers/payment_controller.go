package controllers

import (
	"errors"
	"io"
	"net/http"
	"strings"

	"github.com/Maddyahamco00/Nigeria-bece-sub000/apperrors"
	"github.com/Maddyahamco00/Nigeria-bece-sub000/models"
	"github.com/Maddyahamco00/Nigeria-bece-sub000/services"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// maxWebhookBody is well above any Paystack or Stripe event.
const maxWebhookBody = 1 << 20

type PaymentController struct {
	svc    services.PaymentService
	logger *zap.Logger
}

func NewPaymentController(svc services.PaymentService, logger *zap.Logger) *PaymentController {
	if logger == nil {
		logger = zap.NewNop()
	}
	registerValidators()
	return &PaymentController{svc: svc, logger: logger}
}

// Initialize opens a hosted checkout for a candidate's registration fee.
func (pc *PaymentController) Initialize(c *gin.Context) {
	var req models.InitializePaymentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		if bodyTooLarge(err) {
			c.JSON(http.StatusRequestEntityTooLarge, gin.H{"error": "payload too large"})
			return
		}
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	res, err := pc.svc.Initialize(c.Request.Context(), &req)
	if err != nil {
		pc.respondError(c, "initialize payment failed", err)
		return
	}
	c.JSON(http.StatusOK, res)
}

// Verify is called by the browser after the gateway redirects back.
func (pc *PaymentController) Verify(c *gin.Context) {
	var req models.VerifyPaymentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		if bodyTooLarge(err) {
			c.JSON(http.StatusRequestEntityTooLarge, gin.H{"error": "payload too large"})
			return
		}
		c.JSON(http.StatusBadRequest, gin.H{"error": "reference is required"})
		return
	}

	outcome, err := pc.svc.Verify(c.Request.Context(), strings.TrimSpace(req.Reference))
	if err != nil {
		pc.respondError(c, "verify payment failed", err, zap.String("reference", req.Reference))
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"ok":          true,
		"redirectUrl": outcome.RedirectURL,
		"code":        outcome.Code,
	})
}

// Webhook receives gateway events. The body is read raw because the
// signature covers the exact bytes sent.
func (pc *PaymentController) Webhook(c *gin.Context) {
	payload, err := io.ReadAll(io.LimitReader(c.Request.Body, maxWebhookBody+1))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "could not read body"})
		return
	}
	if len(payload) > maxWebhookBody {
		c.JSON(http.StatusRequestEntityTooLarge, gin.H{"error": "payload too large"})
		return
	}

	signature := c.GetHeader(pc.svc.SignatureHeader())
	outcome, err := pc.svc.HandleWebhook(c.Request.Context(), payload, signature)
	if err != nil {
		pc.respondError(c, "webhook rejected", webhookError(err))
		return
	}
	if outcome == nil {
		c.JSON(http.StatusOK, gin.H{"status": "ignored"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok", "reference": outcome.Reference})
}

func bodyTooLarge(err error) bool {
	var tooLarge *http.MaxBytesError
	return errors.As(err, &tooLarge)
}

// webhookError keeps unsettled outcomes out of the 2xx range. Gateways treat
// any 2xx as delivered and stop retrying.
func webhookError(err error) error {
	if errors.Is(err, apperrors.ErrPaymentPending) || errors.Is(err, apperrors.ErrSettlementInProgress) {
		return apperrors.New(http.StatusServiceUnavailable, "Payment not settled yet, retry later", err)
	}
	return err
}

// Receipt returns the stored outcome for a signed receipt token.
func (pc *PaymentController) Receipt(c *gin.Context) {
	token := c.Query("token")
	if token == "" {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "receipt token is required"})
		return
	}

	outcome, err := pc.svc.Receipt(c.Request.Context(), token)
	if err != nil {
		pc.respondError(c, "receipt lookup failed", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"reference":     outcome.Reference,
		"status":        outcome.Status,
		"code":          outcome.Code,
		"email":         outcome.Email,
		"amount":        outcome.Amount,
		"amountDisplay": outcome.Currency + " " + services.FormatMinorUnits(outcome.Amount),
	})
}

// respondError maps err onto the taxonomy status. Server-side failures are
// logged at error, client-side ones at warn.
func (pc *PaymentController) respondError(c *gin.Context, msg string, err error, fields ...zap.Field) {
	appErr := apperrors.FromError(err)
	fields = append(fields, zap.Int("status", appErr.Code), zap.Error(err))
	if appErr.Code >= http.StatusInternalServerError {
		pc.logger.Error(msg, fields...)
	} else {
		pc.logger.Warn(msg, fields...)
	}
	_ = c.Error(err)

	body := gin.H{"error": appErr.Message}
	if apperrors.Retryable(err) {
		body["retry"] = true
	}
	if errors.Is(err, apperrors.ErrInvalidInput) {
		body["detail"] = detailOf(err)
	}
	c.JSON(appErr.Code, body)
}

// detailOf strips the sentinel suffix so validation messages read cleanly.
func detailOf(err error) string {
	return strings.TrimSuffix(err.Error(), ": "+apperrors.ErrInvalidInput.Error())
}
