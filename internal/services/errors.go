package services

import (
	"errors"
	"fmt"

	"github.com/gofiber/fiber/v2"
)

// ErrorInfo describes one entry of the payment error taxonomy with
// localized user-facing messages.
type ErrorInfo struct {
	Name       string
	HTTPStatus int
	Message    map[string]string
}

var (
	ErrValidation = ErrorInfo{
		Name:       "ValidationError",
		HTTPStatus: fiber.StatusBadRequest,
		Message: map[string]string{
			"ar": "بيانات الطلب غير صالحة",
			"en": "Invalid request data",
		},
	}
	ErrProofRequired = ErrorInfo{
		Name:       "ProofRequired",
		HTTPStatus: fiber.StatusBadRequest,
		Message: map[string]string{
			"ar": "إيصال التحويل مطلوب لهذه الطريقة",
			"en": "A transfer proof is required for this payment method",
		},
	}
	ErrInvalidTransition = ErrorInfo{
		Name:       "InvalidTransition",
		HTTPStatus: fiber.StatusConflict,
		Message: map[string]string{
			"ar": "لا يمكن تغيير حالة الدفع إلى الحالة المطلوبة",
			"en": "The payment cannot move to the requested status",
		},
	}
	ErrStaleState = ErrorInfo{
		Name:       "StaleState",
		HTTPStatus: fiber.StatusConflict,
		Message: map[string]string{
			"ar": "تغيرت حالة الدفع، يرجى إعادة المحاولة",
			"en": "The payment status changed, please retry",
		},
	}
	ErrGatewayUnavailable = ErrorInfo{
		Name:       "GatewayUnavailable",
		HTTPStatus: fiber.StatusBadGateway,
		Message: map[string]string{
			"ar": "بوابة الدفع غير متاحة حالياً، حاول لاحقاً",
			"en": "The payment gateway is unavailable, try again later",
		},
	}
	ErrUnverified = ErrorInfo{
		Name:       "Unverified",
		HTTPStatus: fiber.StatusUnauthorized,
		Message: map[string]string{
			"ar": "تعذر التحقق من مصدر الإشعار",
			"en": "The notification could not be verified",
		},
	}
	ErrAlreadySettled = ErrorInfo{
		Name:       "AlreadySettled",
		HTTPStatus: fiber.StatusConflict,
		Message: map[string]string{
			"ar": "تمت تسوية هذه المستحقات من قبل",
			"en": "This payable has already been settled",
		},
	}
	ErrNotFound = ErrorInfo{
		Name:       "NotFound",
		HTTPStatus: fiber.StatusNotFound,
		Message: map[string]string{
			"ar": "السجل غير موجود",
			"en": "Record not found",
		},
	}
)

// PaymentError is a structured service error carrying taxonomy info.
type PaymentError struct {
	Info   ErrorInfo
	Detail string
}

func (e *PaymentError) Error() string {
	if e.Detail == "" {
		return e.Info.Name
	}
	return fmt.Sprintf("%s: %s", e.Info.Name, e.Detail)
}

// NewError builds a PaymentError with an optional detail string.
func NewError(info ErrorInfo, detail string) *PaymentError {
	return &PaymentError{Info: info, Detail: detail}
}

// IsError reports whether err is a PaymentError of the given kind.
func IsError(err error, info ErrorInfo) bool {
	var pe *PaymentError
	if errors.As(err, &pe) {
		return pe.Info.Name == info.Name
	}
	return false
}

// WriteError renders a service error as a localized JSON response.
func WriteError(c *fiber.Ctx, err error) error {
	var pe *PaymentError
	if errors.As(err, &pe) {
		return c.Status(pe.Info.HTTPStatus).JSON(fiber.Map{
			"error": fiber.Map{
				"name": pe.Info.Name,
				"message": fiber.Map{
					"ar": pe.Info.Message["ar"],
					"en": pe.Info.Message["en"],
				},
				"detail": pe.Detail,
			},
		})
	}
	return err
}
