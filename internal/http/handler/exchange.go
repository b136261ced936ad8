package handler

import (
	"fmt"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/smallbiznis/cardlink/internal/capability"
	"github.com/smallbiznis/cardlink/internal/exchange"
	"github.com/smallbiznis/cardlink/internal/http/middleware"
	"github.com/smallbiznis/cardlink/internal/vcard"
)

// ExchangeHandler serves capability issuance and redemption.
type ExchangeHandler struct {
	Exchange *exchange.Service
	logger   *zap.Logger
}

// NewExchangeHandler creates the handler set.
func NewExchangeHandler(svc *exchange.Service, logger *zap.Logger) *ExchangeHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ExchangeHandler{Exchange: svc, logger: logger.Named("handler")}
}

type redemptionResponse struct {
	Contact   *exchange.ContactView `json:"contact"`
	ProfileID string                `json:"profileId"`
	Token     string                `json:"token"`
	ExpiresIn int64                 `json:"expiresIn"`
}

type geoRequest struct {
	Lat       *float64 `json:"lat" binding:"omitempty,latitude"`
	Lng       *float64 `json:"lng" binding:"omitempty,longitude"`
	City      string   `json:"city" binding:"max=128"`
	Subregion string   `json:"subregion" binding:"max=128"`
	Region    string   `json:"region" binding:"max=128"`
	Country   string   `json:"country" binding:"max=128"`
}

func (g *geoRequest) toGeolocation() *capability.Geolocation {
	if g == nil {
		return nil
	}
	return &capability.Geolocation{
		Lat:       g.Lat,
		Lng:       g.Lng,
		City:      strings.TrimSpace(g.City),
		Subregion: strings.TrimSpace(g.Subregion),
		Region:    strings.TrimSpace(g.Region),
		Country:   strings.TrimSpace(g.Country),
	}
}

// ContactCard redeems a QR profile capability from ?c=.
func (h *ExchangeHandler) ContactCard(c *gin.Context) {
	h.redeemQuery(c, capability.KindQRProfile)
}

// EmailSignature redeems an email-signature capability from ?e=.
func (h *ExchangeHandler) EmailSignature(c *gin.Context) {
	h.redeemQuery(c, capability.KindEmailSignature)
}

// VerifySign redeems a capability posted as its canonical payload and signature.
func (h *ExchangeHandler) VerifySign(c *gin.Context) {
	var req struct {
		Signature string `json:"signature"`
		Data      string `json:"data"`
		Salt      string `json:"salt"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		writeAPIError(c, errInvalidRequest)
		return
	}

	redemption, err := h.Exchange.RedeemParts(c.Request.Context(), req.Data, req.Signature, req.Salt)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	h.writeRedemption(c, redemption)
}

// VCard redeems a share-back capability from ?k= and returns the contact as an attachment.
func (h *ExchangeHandler) VCard(c *gin.Context) {
	raw := queryParam(c, capability.KindShareBack)
	redemption, err := h.Exchange.Redeem(c.Request.Context(), capability.KindShareBack, raw)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}

	c.Header("Cache-Control", "no-store")
	c.Header("Content-Disposition", fmt.Sprintf(`attachment; filename="%s"`, redemption.Filename))
	c.Data(http.StatusOK, vcard.ContentType, redemption.VCard)
}

// IssueQRProfileAccess signs a QR capability for the signed-in profile.
func (h *ExchangeHandler) IssueQRProfileAccess(c *gin.Context) {
	claims, ok := middleware.GetSessionClaims(c)
	if !ok {
		writeAPIError(c, errInvalidToken)
		return
	}
	var req struct {
		Geo *geoRequest `json:"geo"`
	}
	if c.Request.ContentLength != 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			writeAPIError(c, errInvalidRequest)
			return
		}
	}

	issued, err := h.Exchange.IssueQRProfileAccess(c.Request.Context(), claims.ProfileID, req.Geo.toGeolocation())
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusCreated, issued)
}

// IssueEmailSignature signs an email-signature capability for the signed-in profile.
func (h *ExchangeHandler) IssueEmailSignature(c *gin.Context) {
	claims, ok := middleware.GetSessionClaims(c)
	if !ok {
		writeAPIError(c, errInvalidToken)
		return
	}

	issued, err := h.Exchange.IssueEmailSignature(c.Request.Context(), claims.ProfileID)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusCreated, issued)
}

// IssueShareBack shares the signed-in profile's contact back to a card owner.
func (h *ExchangeHandler) IssueShareBack(c *gin.Context) {
	claims, ok := middleware.GetSessionClaims(c)
	if !ok {
		writeAPIError(c, errInvalidToken)
		return
	}
	var req struct {
		OwnerID string      `json:"ownerId" binding:"required,max=128"`
		Geo     *geoRequest `json:"geo"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		writeAPIError(c, errInvalidRequest)
		return
	}

	issued, err := h.Exchange.ShareBackProfile(c.Request.Context(), claims.ProfileID, strings.TrimSpace(req.OwnerID), req.Geo.toGeolocation())
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusCreated, issued)
}

// UpgradeSession returns the contact snapshot behind an upgrade token.
func (h *ExchangeHandler) UpgradeSession(c *gin.Context) {
	claims, ok := middleware.GetUpgradeClaims(c)
	if !ok {
		writeAPIError(c, errInvalidToken)
		return
	}
	std, _ := middleware.GetStdClaims(c)

	resp := gin.H{"claims": claims}
	if std != nil && std.Expiry != nil {
		resp["expiresAt"] = std.Expiry.Time().UTC()
	}
	c.JSON(http.StatusOK, resp)
}

func (h *ExchangeHandler) redeemQuery(c *gin.Context, kind capability.Kind) {
	redemption, err := h.Exchange.Redeem(c.Request.Context(), kind, queryParam(c, kind))
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	h.writeRedemption(c, redemption)
}

func (h *ExchangeHandler) writeRedemption(c *gin.Context, redemption *exchange.Redemption) {
	c.Header("Cache-Control", "no-store")
	c.JSON(http.StatusOK, redemptionResponse{
		Contact:   redemption.Contact,
		ProfileID: redemption.ProfileID,
		Token:     redemption.Token,
		ExpiresIn: int64(redemption.ExpiresIn.Seconds()),
	})
}

func queryParam(c *gin.Context, kind capability.Kind) string {
	traits, _ := capability.Lookup(kind)
	return c.Query(traits.QueryParam)
}
