// Package quickcheck defines the vehicle quick-check inspection form, its
// wire converter for the draft coordinator, and deep-link prefill.
package quickcheck

import (
	"fmt"
	"slices"
	"strconv"
	"strings"

	"github.com/Iron-Ham/quickcheck/internal/errors"
)

// Result is the outcome recorded for one checklist item.
type Result string

const (
	ResultUnchecked Result = ""
	ResultOK        Result = "ok"
	ResultAttention Result = "attention"
	ResultUrgent    Result = "urgent"
)

// ValidResults lists the results a technician can record.
var ValidResults = []Result{ResultOK, ResultAttention, ResultUrgent}

// ParseResult parses a result name. The empty string clears the item.
func ParseResult(s string) (Result, error) {
	r := Result(strings.ToLower(strings.TrimSpace(s)))
	if r == ResultUnchecked || slices.Contains(ValidResults, r) {
		return r, nil
	}
	return "", errors.NewValidationError("must be ok, attention or urgent").WithValue(s)
}

// Vehicle identifies the inspected vehicle.
type Vehicle struct {
	VIN     string
	Plate   string
	Make    string
	Model   string
	Year    int
	Mileage int
}

// Item is one checklist line.
type Item struct {
	Key    string
	Label  string
	Result Result
	Notes  string
}

// Photo is an inspection photo. RemoteURL is set once the upload finished;
// until then only LocalPath is known.
type Photo struct {
	ID        string
	Caption   string
	RemoteURL string
	LocalPath string
}

// Uploaded reports whether the photo has a durable remote reference.
func (p Photo) Uploaded() bool {
	return p.RemoteURL != ""
}

// Form is an in-progress quick check.
type Form struct {
	Customer   string
	Technician string
	Vehicle    Vehicle
	Items      []Item
	Notes      string
	Photos     []Photo
}

// DefaultItems is the standard checklist a new quick check starts with.
func DefaultItems() []Item {
	return []Item{
		{Key: "tires", Label: "Tires & pressure"},
		{Key: "brakes", Label: "Brakes"},
		{Key: "lights", Label: "Lights & signals"},
		{Key: "wipers", Label: "Wipers"},
		{Key: "fluids", Label: "Fluid levels"},
		{Key: "battery", Label: "Battery"},
		{Key: "belts", Label: "Belts & hoses"},
	}
}

// New returns an empty quick check with the default checklist.
func New() Form {
	return Form{Items: DefaultItems()}
}

// Field keys accepted by Get, Set and Prefill. Checklist items use
// ItemPrefix followed by the item key.
const (
	FieldCustomer   = "customer"
	FieldTechnician = "technician"
	FieldVIN        = "vin"
	FieldPlate      = "plate"
	FieldMake       = "make"
	FieldModel      = "model"
	FieldYear       = "year"
	FieldMileage    = "mileage"
	FieldNotes      = "notes"

	ItemPrefix = "item."
)

// TextFields lists the free-text fields in display order.
var TextFields = []string{
	FieldCustomer, FieldTechnician, FieldPlate, FieldVIN,
	FieldMake, FieldModel, FieldYear, FieldMileage, FieldNotes,
}

// Title is the short label stored with the draft.
func (f Form) Title() string {
	var parts []string
	if v := strings.TrimSpace(strings.Join([]string{yearString(f.Vehicle.Year), f.Vehicle.Make, f.Vehicle.Model}, " ")); v != "" {
		parts = append(parts, v)
	}
	if f.Vehicle.Plate != "" {
		parts = append(parts, f.Vehicle.Plate)
	}
	if f.Customer != "" {
		parts = append(parts, f.Customer)
	}
	if len(parts) == 0 {
		return "New quick check"
	}
	return strings.Join(parts, " · ")
}

func yearString(y int) string {
	if y == 0 {
		return ""
	}
	return strconv.Itoa(y)
}

// Get returns the value of field as text.
func (f Form) Get(field string) (string, error) {
	switch field {
	case FieldCustomer:
		return f.Customer, nil
	case FieldTechnician:
		return f.Technician, nil
	case FieldVIN:
		return f.Vehicle.VIN, nil
	case FieldPlate:
		return f.Vehicle.Plate, nil
	case FieldMake:
		return f.Vehicle.Make, nil
	case FieldModel:
		return f.Vehicle.Model, nil
	case FieldYear:
		return yearString(f.Vehicle.Year), nil
	case FieldMileage:
		if f.Vehicle.Mileage == 0 {
			return "", nil
		}
		return strconv.Itoa(f.Vehicle.Mileage), nil
	case FieldNotes:
		return f.Notes, nil
	}
	if key, ok := strings.CutPrefix(field, ItemPrefix); ok {
		if i := f.itemIndex(key); i >= 0 {
			return string(f.Items[i].Result), nil
		}
	}
	return "", unknownField(field)
}

// Set returns a copy of f with field set to value. Numeric fields must parse
// as non-negative integers; an empty value clears them.
func (f Form) Set(field, value string) (Form, error) {
	out := f.Clone()
	value = strings.TrimSpace(value)
	switch field {
	case FieldCustomer:
		out.Customer = value
	case FieldTechnician:
		out.Technician = value
	case FieldVIN:
		out.Vehicle.VIN = strings.ToUpper(value)
	case FieldPlate:
		out.Vehicle.Plate = strings.ToUpper(value)
	case FieldMake:
		out.Vehicle.Make = value
	case FieldModel:
		out.Vehicle.Model = value
	case FieldYear:
		n, err := parseCount(field, value)
		if err != nil {
			return f, err
		}
		out.Vehicle.Year = n
	case FieldMileage:
		n, err := parseCount(field, value)
		if err != nil {
			return f, err
		}
		out.Vehicle.Mileage = n
	case FieldNotes:
		out.Notes = value
	default:
		key, ok := strings.CutPrefix(field, ItemPrefix)
		if !ok {
			return f, unknownField(field)
		}
		i := out.itemIndex(key)
		if i < 0 {
			return f, unknownField(field)
		}
		r, err := ParseResult(value)
		if err != nil {
			return f, err
		}
		out.Items[i].Result = r
	}
	return out, nil
}

// Clone returns a deep copy of f.
func (f Form) Clone() Form {
	out := f
	out.Items = slices.Clone(f.Items)
	out.Photos = slices.Clone(f.Photos)
	return out
}

// Counts returns how many items carry each result.
func (f Form) Counts() map[Result]int {
	counts := make(map[Result]int, len(ValidResults)+1)
	for _, it := range f.Items {
		counts[it.Result]++
	}
	return counts
}

// PendingUploads returns the photos that have not finished uploading.
func (f Form) PendingUploads() []Photo {
	var out []Photo
	for _, p := range f.Photos {
		if !p.Uploaded() {
			out = append(out, p)
		}
	}
	return out
}

func (f Form) itemIndex(key string) int {
	return slices.IndexFunc(f.Items, func(it Item) bool { return it.Key == key })
}

func parseCount(field, value string) (int, error) {
	if value == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(strings.ReplaceAll(value, ",", ""))
	if err != nil || n < 0 {
		return 0, errors.NewValidationError("must be a non-negative whole number").WithField(field).WithValue(value)
	}
	return n, nil
}

func unknownField(field string) error {
	return errors.NewValidationError(fmt.Sprintf("unknown field %q", field)).WithField(field)
}
