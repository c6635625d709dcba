package ptt

import (
	"fmt"

	"github.com/warthog618/go-gpiocdev"
)

// Config selects a GPIO line on a gpiochip character device.
type Config struct {
	Chip      string // e.g. "gpiochip0"
	Line      int
	ActiveLow bool
}

func requestOutput(cfg Config) (*gpiocdev.Line, error) {
	if cfg.Chip == "" {
		return nil, fmt.Errorf("ptt: gpio chip name is required")
	}
	if cfg.Line < 0 {
		return nil, fmt.Errorf("ptt: gpio line must not be negative, got %d", cfg.Line)
	}
	line, err := gpiocdev.RequestLine(cfg.Chip, cfg.Line,
		gpiocdev.AsOutput(lineValue(false, cfg.ActiveLow)))
	if err != nil {
		return nil, fmt.Errorf("ptt: request %s line %d: %w", cfg.Chip, cfg.Line, err)
	}
	return line, nil
}

// GPIOKeyer keys PTT through a GPIO line.
type GPIOKeyer struct {
	line      *gpiocdev.Line
	activeLow bool
}

// NewGPIOKeyer requests the line and leaves it unkeyed.
func NewGPIOKeyer(cfg Config) (*GPIOKeyer, error) {
	line, err := requestOutput(cfg)
	if err != nil {
		return nil, err
	}
	return &GPIOKeyer{line: line, activeLow: cfg.ActiveLow}, nil
}

func (k *GPIOKeyer) Key() error {
	return k.line.SetValue(lineValue(true, k.activeLow))
}

func (k *GPIOKeyer) Unkey() error {
	return k.line.SetValue(lineValue(false, k.activeLow))
}

// Close releases the line, unkeying first so a crash never leaves the
// transmitter keyed.
func (k *GPIOKeyer) Close() error {
	if err := k.Unkey(); err != nil {
		_ = k.line.Close()
		return err
	}
	return k.line.Close()
}

// GPIOIndicator drives a lamp or relay through a GPIO line.
type GPIOIndicator struct {
	line      *gpiocdev.Line
	activeLow bool
}

// NewGPIOIndicator requests the line and leaves it off.
func NewGPIOIndicator(cfg Config) (*GPIOIndicator, error) {
	line, err := requestOutput(cfg)
	if err != nil {
		return nil, err
	}
	return &GPIOIndicator{line: line, activeLow: cfg.ActiveLow}, nil
}

func (i *GPIOIndicator) Set(on bool) error {
	return i.line.SetValue(lineValue(on, i.activeLow))
}

// Close turns the indicator off and releases the line.
func (i *GPIOIndicator) Close() error {
	if err := i.Set(false); err != nil {
		_ = i.line.Close()
		return err
	}
	return i.line.Close()
}
