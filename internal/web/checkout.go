package web

import (
	"net/http"
	"net/url"

	"github.com/gin-gonic/gin"
)

const (
	checkoutCancelPath  = "/service/cancel/"
	checkoutAccountPath = "/service/account/"
)

// Checkout completes a payment flow. The query string is forwarded to the
// API's session endpoint; a session with a secret sends the visitor to
// their new account, anything else to the cancel page.
func (h *Handler) Checkout(c *gin.Context) {
	session := h.api.CheckoutSession(c.Request.Context(), c.Request.URL.Query())
	if session == nil || session.Secret == "" {
		c.Redirect(http.StatusFound, checkoutCancelPath)
		return
	}
	v := url.Values{}
	v.Set("secret", session.Secret)
	v.Set("welcome", "true")
	c.Redirect(http.StatusFound, checkoutAccountPath+"?"+v.Encode())
}
