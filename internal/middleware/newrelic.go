package middleware

import (
	"github.com/gin-gonic/gin"
	"github.com/newrelic/go-agent/v3/integrations/nrgin"
)

// NewRelicAttributes tags the nrgin transaction with the caller and reports
// errors handlers attached with c.Error. It must run after nrgin.Middleware
// and does nothing when New Relic is disabled.
func NewRelicAttributes() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		txn := nrgin.Transaction(c)
		if txn == nil {
			return
		}
		if actor, ok := ActorFromContext(c); ok {
			txn.AddAttribute("actor.id", actor.ID)
			txn.AddAttribute("actor.type", string(actor.Type))
		}
		for _, err := range c.Errors {
			txn.NoticeError(err.Err)
		}
	}
}
