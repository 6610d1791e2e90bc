package handlers

import (
	"fmt"

	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"

	"eventhub/api/models"
)

// RegisterValidators adds the domain tags used in request DTOs to gin's validator.
func RegisterValidators() error {
	v, ok := binding.Validator.Engine().(*validator.Validate)
	if !ok {
		return fmt.Errorf("unexpected validator engine %T", binding.Validator.Engine())
	}
	if err := v.RegisterValidation("event_time", validEventTime); err != nil {
		return err
	}
	return v.RegisterValidation("interaction_kind", validInteractionKind)
}

func validEventTime(fl validator.FieldLevel) bool {
	switch fl.Field().String() {
	case "morning", "afternoon", "evening", "night":
		return true
	}
	return false
}

func validInteractionKind(fl validator.FieldLevel) bool {
	k := models.InteractionKind(fl.Field().String())
	return k.Valid() || k == models.InteractionSearch
}
