package middleware

import (
	"log"

	"github.com/gofiber/fiber/v2"

	"github.com/example/daris/internal/services"
)

// SignatureHeader carries the hosted gateway's HMAC over the raw body.
const SignatureHeader = "X-Gateway-Signature"

// HostedSignature rejects hosted-gateway webhooks whose payload signature
// does not verify. This is the only case a webhook answers non-200: the
// gateway must not treat an unverified delivery as acknowledged.
func HostedSignature(secret string) fiber.Handler {
	return func(c *fiber.Ctx) error {
		signature := c.Get(SignatureHeader)
		if signature == "" || !services.VerifySignature(secret, c.Body(), signature) {
			log.Printf("[Hosted] rejected webhook with missing or bad signature")
			return services.WriteError(c, services.NewError(services.ErrUnverified, "bad webhook signature"))
		}
		return c.Next()
	}
}
