package types

import (
	"encoding/json"
	"errors"
	"fmt"

	"gopkg.in/yaml.v3"
)

// DefaultPriceCurrency is used for cost statistics when a metering point does
// not specify a currency.
const DefaultPriceCurrency = "EUR"

// Credentials are the portal login credentials. They must never be logged.
type Credentials struct {
	Username string
	Password string
}

// Validate ensures both fields are set.
func (c Credentials) Validate() error {
	if c.Username == "" {
		return errors.New("missing username")
	}
	if c.Password == "" {
		return errors.New("missing password")
	}
	return nil
}

// MeteringPoint is a configured object on the portal that we import
// statistics for.
type MeteringPoint struct {
	Name string `json:"name" yaml:"name"`
	ID   string `json:"id" yaml:"id"`

	// Consumed imports the energy consumed from the grid. Defaults to true.
	Consumed bool `json:"consumed" yaml:"consumed"`
	// Returned imports the energy returned to the grid. Defaults to false.
	Returned bool `json:"returned" yaml:"returned"`

	// PriceEntity is the identifier of the price series used to build the
	// cost statistic. Cost is not imported when empty.
	PriceEntity   string `json:"price_entity,omitempty" yaml:"price_entity,omitempty"`
	PriceCurrency string `json:"price_currency,omitempty" yaml:"price_currency,omitempty"`
}

// UnmarshalJSON applies the defaults before decoding.
func (p *MeteringPoint) UnmarshalJSON(b []byte) error {
	type alias MeteringPoint
	a := alias{Consumed: true}
	if err := json.Unmarshal(b, &a); err != nil {
		return err
	}
	*p = MeteringPoint(a)
	return nil
}

// UnmarshalYAML applies the defaults before decoding.
func (p *MeteringPoint) UnmarshalYAML(value *yaml.Node) error {
	type alias MeteringPoint
	a := alias{Consumed: true}
	if err := value.Decode(&a); err != nil {
		return err
	}
	*p = MeteringPoint(a)
	return nil
}

// Currency returns the configured price currency or DefaultPriceCurrency.
func (p MeteringPoint) Currency() string {
	if p.PriceCurrency == "" {
		return DefaultPriceCurrency
	}
	return p.PriceCurrency
}

// Kinds returns the enabled energy kinds, consumed first.
func (p MeteringPoint) Kinds() []EnergyKind {
	var kinds []EnergyKind
	if p.Consumed {
		kinds = append(kinds, EnergyConsumed)
	}
	if p.Returned {
		kinds = append(kinds, EnergyReturned)
	}
	return kinds
}

// Validate checks a single metering point.
func (p MeteringPoint) Validate() error {
	if p.ID == "" {
		return errors.New("metering point id is required")
	}
	if p.Name == "" {
		return fmt.Errorf("metering point %s: name is required", p.ID)
	}
	return nil
}

// ValidateMeteringPoints validates every point and makes sure ids are unique.
func ValidateMeteringPoints(points []MeteringPoint) error {
	seen := make(map[string]struct{}, len(points))
	for _, p := range points {
		if err := p.Validate(); err != nil {
			return err
		}
		if _, ok := seen[p.ID]; ok {
			return fmt.Errorf("duplicate metering point id: %s", p.ID)
		}
		seen[p.ID] = struct{}{}
	}
	return nil
}
