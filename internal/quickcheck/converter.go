package quickcheck

import (
	"encoding/json"
	"fmt"

	"github.com/Iron-Ham/quickcheck/internal/draft"
	"github.com/Iron-Ham/quickcheck/internal/errors"
)

// WireVersion is the payload format version written by ToWire.
const WireVersion = 1

type wireForm struct {
	Version    int         `json:"v"`
	Customer   string      `json:"customer,omitempty"`
	Technician string      `json:"technician,omitempty"`
	Vehicle    wireVehicle `json:"vehicle"`
	Items      []wireItem  `json:"items,omitempty"`
	Notes      string      `json:"notes,omitempty"`
	Photos     []wirePhoto `json:"photos,omitempty"`
}

type wireVehicle struct {
	VIN     string `json:"vin,omitempty"`
	Plate   string `json:"plate,omitempty"`
	Make    string `json:"make,omitempty"`
	Model   string `json:"model,omitempty"`
	Year    int    `json:"year,omitempty"`
	Mileage int    `json:"mileage,omitempty"`
}

type wireItem struct {
	Key    string `json:"key"`
	Label  string `json:"label,omitempty"`
	Result Result `json:"result,omitempty"`
	Notes  string `json:"notes,omitempty"`
}

type wirePhoto struct {
	ID      string `json:"id,omitempty"`
	Caption string `json:"caption,omitempty"`
	URL     string `json:"url"`
}

// Converter maps Form to and from draft payloads. Photos that are still
// uploading are dropped, as are local file paths.
type Converter struct{}

var _ draft.Converter[Form] = Converter{}

func (Converter) ToWire(f Form) ([]byte, error) {
	w := wireForm{
		Version:    WireVersion,
		Customer:   f.Customer,
		Technician: f.Technician,
		Vehicle: wireVehicle{
			VIN:     f.Vehicle.VIN,
			Plate:   f.Vehicle.Plate,
			Make:    f.Vehicle.Make,
			Model:   f.Vehicle.Model,
			Year:    f.Vehicle.Year,
			Mileage: f.Vehicle.Mileage,
		},
		Notes: f.Notes,
	}
	for _, it := range f.Items {
		w.Items = append(w.Items, wireItem(it))
	}
	for _, p := range f.Photos {
		if !p.Uploaded() {
			continue
		}
		w.Photos = append(w.Photos, wirePhoto{ID: p.ID, Caption: p.Caption, URL: p.RemoteURL})
	}
	return json.Marshal(w)
}

func (Converter) FromWire(payload []byte) (Form, error) {
	var w wireForm
	if err := json.Unmarshal(payload, &w); err != nil {
		return Form{}, fmt.Errorf("%w: %v", errors.ErrPayloadCorrupted, err)
	}
	if w.Version > WireVersion {
		return Form{}, fmt.Errorf("%w: payload version %d is newer than %d", errors.ErrPayloadCorrupted, w.Version, WireVersion)
	}
	f := Form{
		Customer:   w.Customer,
		Technician: w.Technician,
		Vehicle: Vehicle{
			VIN:     w.Vehicle.VIN,
			Plate:   w.Vehicle.Plate,
			Make:    w.Vehicle.Make,
			Model:   w.Vehicle.Model,
			Year:    w.Vehicle.Year,
			Mileage: w.Vehicle.Mileage,
		},
		Notes: w.Notes,
	}
	for _, it := range w.Items {
		f.Items = append(f.Items, Item(it))
	}
	for _, p := range w.Photos {
		f.Photos = append(f.Photos, Photo{ID: p.ID, Caption: p.Caption, RemoteURL: p.URL})
	}
	return f, nil
}

func (Converter) Title(f Form) string { return f.Title() }
