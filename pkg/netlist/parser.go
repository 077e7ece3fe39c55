// Package netlist reads SPICE-style card decks and builds the device list
// for an operating-point analysis.
package netlist

import (
	"bufio"
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/ohmlab/gospice/pkg/device"
	"github.com/ohmlab/gospice/pkg/mna"
)

var (
	ErrEmptyDeck       = errors.New("netlist: empty deck")
	ErrUnknownCard     = errors.New("netlist: unknown card")
	ErrUndefinedModel  = errors.New("netlist: undefined model")
	ErrInvalidValue    = errors.New("netlist: invalid value")
	ErrInvalidElement  = errors.New("netlist: invalid element")
	ErrUnsupportedType = errors.New("netlist: unsupported model type")
)

// Model holds parsed .model card parameters.
type Model struct {
	Name   string
	Type   string // "D" or "SW"
	Params map[string]float64
}

// Deck is a parsed netlist.
type Deck struct {
	Title    string
	Elements []Element
	Models   map[string]Model
}

// Element is one component card before device construction.
type Element struct {
	Type   string // R, C, L, V, I, D, S
	Name   string
	Nodes  []string
	Value  float64
	Params map[string]string
}

var unitMap = map[string]float64{
	"T":   1e12,
	"G":   1e9,
	"meg": 1e6,
	"K":   1e3,
	"k":   1e3,
	"m":   1e-3,
	"u":   1e-6,
	"n":   1e-9,
	"p":   1e-12,
	"f":   1e-15,
}

var spaceRe = regexp.MustCompile(`\s+`)

// Parse reads a netlist. First line is the title; "*" starts a comment,
// "+" continues the previous card, ".end" stops parsing.
func Parse(input string) (*Deck, error) {
	scanner := bufio.NewScanner(strings.NewReader(input))
	deck := &Deck{Models: make(map[string]Model)}

	if !scanner.Scan() {
		return nil, ErrEmptyDeck
	}
	deck.Title = strings.TrimSpace(strings.TrimPrefix(scanner.Text(), "*"))

	var current string
	ended := false
	for scanner.Scan() && !ended {
		line := strings.TrimSpace(scanner.Text())

		// Strip trailing comment.
		if idx := strings.Index(line, "*"); idx >= 0 {
			line = strings.TrimSpace(line[:idx])
		}
		if len(line) == 0 {
			continue
		}

		if strings.HasPrefix(line, "+") {
			if current == "" {
				return nil, fmt.Errorf("%w: continuation without a card", ErrInvalidElement)
			}
			current += " " + strings.TrimSpace(line[1:])
			continue
		}

		if current != "" {
			end, err := parseCard(deck, current)
			if err != nil {
				return nil, err
			}
			ended = end
		}
		current = line
	}
	if current != "" && !ended {
		if _, err := parseCard(deck, current); err != nil {
			return nil, err
		}
	}
	if len(deck.Elements) == 0 {
		return nil, ErrEmptyDeck
	}
	return deck, nil
}

// parseCard dispatches one logical line. Returns true on .end.
func parseCard(deck *Deck, line string) (bool, error) {
	line = spaceRe.ReplaceAllString(line, " ")

	if strings.HasPrefix(line, ".") {
		fields := strings.Fields(line)
		switch strings.ToLower(fields[0]) {
		case ".model":
			return false, parseModel(deck, fields[1:])
		case ".op":
			// Operating point is the only analysis; the card is accepted
			// for deck compatibility.
			return false, nil
		case ".end":
			return true, nil
		default:
			return false, fmt.Errorf("%w: %s", ErrUnknownCard, fields[0])
		}
	}

	elem, err := parseElement(line)
	if err != nil {
		return false, err
	}
	deck.Elements = append(deck.Elements, *elem)
	return false, nil
}

func parseModel(deck *Deck, fields []string) error {
	if len(fields) < 2 {
		return fmt.Errorf("%w: .model needs a name and a type", ErrInvalidElement)
	}

	name := fields[0]
	rest := strings.Join(fields[1:], " ")

	// Parameters may be wrapped in parentheses: D(is=1e-15 n=1.5).
	rest = strings.ReplaceAll(rest, "(", " ")
	rest = strings.ReplaceAll(rest, ")", " ")
	words := strings.Fields(rest)
	if len(words) == 0 {
		return fmt.Errorf("%w: .model %s has no type", ErrInvalidElement, name)
	}

	modelType := strings.ToUpper(words[0])
	if modelType != "D" && modelType != "SW" {
		return fmt.Errorf("%w: %s", ErrUnsupportedType, modelType)
	}

	params := make(map[string]float64)
	for _, pair := range words[1:] {
		parts := strings.SplitN(pair, "=", 2)
		if len(parts) != 2 {
			continue
		}
		v, err := ParseValue(parts[1])
		if err != nil {
			return fmt.Errorf("%w: model %s parameter %s", ErrInvalidValue, name, pair)
		}
		params[strings.ToLower(parts[0])] = v
	}

	deck.Models[name] = Model{Name: name, Type: modelType, Params: params}
	return nil
}

func parseElement(line string) (*Element, error) {
	fields := strings.Fields(line)
	if len(fields) < 3 {
		return nil, fmt.Errorf("%w: %s", ErrInvalidElement, line)
	}

	elem := &Element{
		Name:   fields[0],
		Type:   strings.ToUpper(string(fields[0][0])),
		Params: make(map[string]string),
	}

	switch elem.Type {
	case "V", "I":
		return parseSource(elem, fields)

	case "D":
		elem.Nodes = fields[1:3]
		if len(fields) > 3 {
			elem.Params["model"] = fields[3]
		}
		return elem, nil

	case "S":
		// Sname n+ n- nc+ nc- [model]
		if len(fields) < 5 {
			return nil, fmt.Errorf("%w: switch %s needs four nodes", ErrInvalidElement, elem.Name)
		}
		elem.Nodes = fields[1:5]
		if len(fields) > 5 {
			elem.Params["model"] = fields[5]
		}
		return elem, nil

	case "R", "C", "L":
		if len(fields) < 4 {
			return nil, fmt.Errorf("%w: %s needs nodes and a value", ErrInvalidElement, elem.Name)
		}
		elem.Nodes = fields[1:3]
		value, err := ParseValue(fields[3])
		if err != nil {
			return nil, fmt.Errorf("%w: %s value %q", ErrInvalidValue, elem.Name, fields[3])
		}
		elem.Value = value
		return elem, nil

	default:
		return nil, fmt.Errorf("%w: %s", ErrUnknownCard, elem.Name)
	}
}

// parseSource handles DC, SIN, PULSE and PWL source cards. A bare value
// after the nodes is treated as DC.
func parseSource(elem *Element, fields []string) (*Element, error) {
	if len(fields) < 4 {
		return nil, fmt.Errorf("%w: source %s needs nodes and a value", ErrInvalidElement, elem.Name)
	}
	elem.Nodes = []string{fields[1], fields[2]}

	remaining := strings.Join(fields[3:], " ")
	remaining = strings.ReplaceAll(remaining, "(", " ( ")
	remaining = strings.ReplaceAll(remaining, ")", " ) ")
	words := strings.Fields(remaining)

	switch strings.ToUpper(words[0]) {
	case "DC":
		if len(words) < 2 {
			return nil, fmt.Errorf("%w: %s missing DC value", ErrInvalidElement, elem.Name)
		}
		elem.Params["type"] = "dc"
		value, err := ParseValue(words[1])
		if err != nil {
			return nil, fmt.Errorf("%w: %s DC value %q", ErrInvalidValue, elem.Name, words[1])
		}
		elem.Value = value

	case "SIN":
		elem.Params["type"] = "sin"
		elem.Params["sin"] = strings.Trim(strings.Join(words[1:], " "), "() ")

	case "PULSE":
		elem.Params["type"] = "pulse"
		elem.Params["pulse"] = strings.Trim(strings.Join(words[1:], " "), "() ")

	case "PWL":
		elem.Params["type"] = "pwl"
		elem.Params["pwl"] = strings.Trim(strings.Join(words[1:], " "), "() ")

	default:
		// V1 in 0 5
		value, err := ParseValue(words[0])
		if err != nil {
			return nil, fmt.Errorf("%w: source type %s", ErrUnknownCard, words[0])
		}
		elem.Params["type"] = "dc"
		elem.Value = value
	}

	return elem, nil
}

// Components builds the device list for a parsed deck.
func (d *Deck) Components() ([]mna.Component, error) {
	comps := make([]mna.Component, 0, len(d.Elements))
	for _, elem := range d.Elements {
		c, err := d.buildDevice(elem)
		if err != nil {
			return nil, err
		}
		comps = append(comps, c)
	}
	return comps, nil
}

func (d *Deck) buildDevice(elem Element) (mna.Component, error) {
	switch elem.Type {
	case "R":
		return device.NewResistor(elem.Name, elem.Nodes, elem.Value), nil

	case "C":
		return device.NewCapacitor(elem.Name, elem.Nodes, elem.Value), nil

	case "L":
		return device.NewInductor(elem.Name, elem.Nodes, elem.Value), nil

	case "D":
		diode := device.NewDiode(elem.Name, elem.Nodes)
		if err := d.applyModel(elem, "D", diode.SetModelParameters); err != nil {
			return nil, err
		}
		return diode, nil

	case "S":
		sw := device.NewVSwitch(elem.Name, elem.Nodes)
		if err := d.applyModel(elem, "SW", sw.SetModelParameters); err != nil {
			return nil, err
		}
		return sw, nil

	case "V":
		switch elem.Params["type"] {
		case "dc":
			return device.NewDCVoltageSource(elem.Name, elem.Nodes, elem.Value), nil
		case "sin":
			offset, amplitude, freq, phase, err := parseSinParams(elem.Params["sin"])
			if err != nil {
				return nil, err
			}
			return device.NewSinVoltageSource(elem.Name, elem.Nodes, offset, amplitude, freq, phase), nil
		case "pulse":
			v1, v2, delay, rise, fall, pWidth, period, err := parsePulseParams(elem.Params["pulse"])
			if err != nil {
				return nil, err
			}
			return device.NewPulseVoltageSource(elem.Name, elem.Nodes, v1, v2, delay, rise, fall, pWidth, period), nil
		case "pwl":
			times, values, err := parsePWLParams(elem.Params["pwl"])
			if err != nil {
				return nil, err
			}
			return device.NewPWLVoltageSource(elem.Name, elem.Nodes, times, values), nil
		}

	case "I":
		switch elem.Params["type"] {
		case "dc":
			return device.NewDCCurrentSource(elem.Name, elem.Nodes, elem.Value), nil
		case "sin":
			offset, amplitude, freq, phase, err := parseSinParams(elem.Params["sin"])
			if err != nil {
				return nil, err
			}
			return device.NewSinCurrentSource(elem.Name, elem.Nodes, offset, amplitude, freq, phase), nil
		}
	}
	return nil, fmt.Errorf("%w: %s", ErrUnknownCard, elem.Name)
}

func (d *Deck) applyModel(elem Element, wantType string, apply func(map[string]float64)) error {
	name, ok := elem.Params["model"]
	if !ok {
		return nil
	}
	model, exists := d.Models[name]
	if !exists {
		return fmt.Errorf("%w: %s for %s", ErrUndefinedModel, name, elem.Name)
	}
	if model.Type != wantType {
		return fmt.Errorf("%w: %s is %s, %s expects %s", ErrUnsupportedType, name, model.Type, elem.Name, wantType)
	}
	apply(model.Params)
	return nil
}

func parseSinParams(params string) (offset, amplitude, freq, phase float64, err error) {
	sinParams := strings.Fields(params)
	if len(sinParams) < 3 {
		return 0, 0, 0, 0, fmt.Errorf("%w: SIN needs offset, amplitude and frequency", ErrInvalidElement)
	}

	parse := func(s, what string) (float64, error) {
		v, perr := ParseValue(s)
		if perr != nil {
			return 0, fmt.Errorf("%w: SIN %s %q", ErrInvalidValue, what, s)
		}
		return v, nil
	}

	if offset, err = parse(sinParams[0], "offset"); err != nil {
		return 0, 0, 0, 0, err
	}
	if amplitude, err = parse(sinParams[1], "amplitude"); err != nil {
		return 0, 0, 0, 0, err
	}
	if freq, err = parse(sinParams[2], "frequency"); err != nil {
		return 0, 0, 0, 0, err
	}
	if len(sinParams) > 3 {
		if phase, err = parse(sinParams[3], "phase"); err != nil {
			return 0, 0, 0, 0, err
		}
	}
	return offset, amplitude, freq, phase, nil
}

func parsePulseParams(params string) (v1, v2, delay, rise, fall, pWidth, period float64, err error) {
	pulseParams := strings.Fields(params)
	if len(pulseParams) < 7 {
		err = fmt.Errorf("%w: PULSE needs seven parameters", ErrInvalidElement)
		return
	}

	out := [7]float64{}
	names := [7]string{"v1", "v2", "delay", "rise", "fall", "width", "period"}
	for i := range out {
		out[i], err = ParseValue(pulseParams[i])
		if err != nil {
			err = fmt.Errorf("%w: PULSE %s %q", ErrInvalidValue, names[i], pulseParams[i])
			return
		}
	}
	return out[0], out[1], out[2], out[3], out[4], out[5], out[6], nil
}

func parsePWLParams(params string) (times []float64, values []float64, err error) {
	pwlParams := strings.Fields(params)
	if len(pwlParams) < 4 || len(pwlParams)%2 != 0 {
		return nil, nil, fmt.Errorf("%w: PWL needs time-value pairs", ErrInvalidElement)
	}

	numPoints := len(pwlParams) / 2
	times = make([]float64, numPoints)
	values = make([]float64, numPoints)
	for i := 0; i < numPoints; i++ {
		times[i], err = ParseValue(pwlParams[2*i])
		if err != nil {
			return nil, nil, fmt.Errorf("%w: PWL time %q", ErrInvalidValue, pwlParams[2*i])
		}
		values[i], err = ParseValue(pwlParams[2*i+1])
		if err != nil {
			return nil, nil, fmt.Errorf("%w: PWL value %q", ErrInvalidValue, pwlParams[2*i+1])
		}
		if i > 0 && times[i] <= times[i-1] {
			return nil, nil, fmt.Errorf("%w: PWL times must be strictly increasing", ErrInvalidElement)
		}
	}
	return times, values, nil
}

var valueRe = regexp.MustCompile(`^([-+]?\d*\.?\d+(?:[eE][-+]?\d+)?)(meg|[TGKkmunpf])?[a-zA-Z]*$`)

// ParseValue converts an engineering-notation value: 1k -> 1000,
// 2.2u -> 2.2e-6. A trailing unit name (V, Ohm, F) is ignored.
func ParseValue(val string) (float64, error) {
	matches := valueRe.FindStringSubmatch(strings.TrimSpace(val))
	if matches == nil {
		return 0, fmt.Errorf("%w: %q", ErrInvalidValue, val)
	}

	num, err := strconv.ParseFloat(matches[1], 64)
	if err != nil {
		return 0, fmt.Errorf("%w: %q", ErrInvalidValue, val)
	}
	if matches[2] != "" {
		num *= unitMap[matches[2]]
	}
	return num, nil
}
