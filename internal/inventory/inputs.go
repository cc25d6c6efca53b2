package inventory

import (
	"errors"
	"fmt"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
)

// PrinterInput creates a printer. Counter is free text and keeps only its
// digits; an empty Color uses the default.
type PrinterInput struct {
	Name    string `json:"name" validate:"required"`
	Counter string `json:"counter"`
	Color   string `json:"color" validate:"omitempty,hexcolor"`
}

// SparePartInput creates or edits a spare part.
type SparePartInput struct {
	Code         string `json:"code" validate:"required"`
	Description  string `json:"description" validate:"required"`
	HighRotation bool   `json:"high_rotation"`
}

// ChangeInput records a replacement. An empty ChangeDate means today, a zero
// Quantity means 1 and an empty Detail is stored as null.
type ChangeInput struct {
	PrinterID      string `json:"printer_id" validate:"required"`
	SparePartID    string `json:"spare_part_id" validate:"required"`
	ChangeDate     string `json:"change_date"`
	PrinterCounter int64  `json:"printer_counter" validate:"gte=0"`
	Quantity       int    `json:"quantity" validate:"gte=0"`
	Detail         string `json:"detail"`
}

func (in *PrinterInput) normalize() {
	in.Name = strings.TrimSpace(in.Name)
	in.Color = strings.TrimSpace(in.Color)
}

func (in *SparePartInput) normalize() {
	in.Code = strings.TrimSpace(in.Code)
	in.Description = strings.TrimSpace(in.Description)
}

func (in *ChangeInput) normalize() {
	in.PrinterID = strings.TrimSpace(in.PrinterID)
	in.SparePartID = strings.TrimSpace(in.SparePartID)
	in.ChangeDate = strings.TrimSpace(in.ChangeDate)
	in.Detail = strings.TrimSpace(in.Detail)
}

// newValidator reports fields by their JSON names.
func newValidator() *validator.Validate {
	v := validator.New()
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

// validateStruct runs the struct tags and rewrites failures as plain
// messages that MapError recognizes.
func validateStruct(v *validator.Validate, s any) error {
	err := v.Struct(s)
	if err == nil {
		return nil
	}

	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return err
	}

	msgs := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		msgs = append(msgs, fieldMessage(fe))
	}
	return errors.New(strings.Join(msgs, "; "))
}

func fieldMessage(fe validator.FieldError) string {
	field := fe.Field()
	switch fe.Tag() {
	case "required":
		return fmt.Sprintf("%s is required", field)
	case "hexcolor":
		return fmt.Sprintf("invalid color %q", fe.Value())
	case "gte":
		if field == "quantity" {
			return fmt.Sprintf("invalid quantity %v", fe.Value())
		}
		return fmt.Sprintf("%s must be a whole number", field)
	default:
		return fmt.Sprintf("%s is invalid", field)
	}
}
