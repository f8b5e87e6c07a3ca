package blinkt

import (
	"errors"
	"fmt"
	"strconv"
	"sync"

	"periph.io/x/conn/v3/gpio"
	"periph.io/x/conn/v3/gpio/gpioreg"
	"periph.io/x/conn/v3/gpio/gpiotest"
	"periph.io/x/host/v3"
)

var ErrPinNotFound = errors.New("gpio pin not found")

// PinProvider hands out GPIO lines configured as outputs.
type PinProvider interface {
	OutputPin(number int) (gpio.PinOut, error)
}

// PinProviderFunc adapts a function to PinProvider.
type PinProviderFunc func(number int) (gpio.PinOut, error)

func (f PinProviderFunc) OutputPin(number int) (gpio.PinOut, error) {
	return f(number)
}

// RegistryPins finds pins by number in gpioreg and drives them low, which
// claims them as outputs. The registry must already be populated.
type RegistryPins struct{}

func (RegistryPins) OutputPin(number int) (gpio.PinOut, error) {
	p := gpioreg.ByName(strconv.Itoa(number))
	if p == nil {
		return nil, fmt.Errorf("gpio %d: %w", number, ErrPinNotFound)
	}
	if err := p.Out(gpio.Low); err != nil {
		return nil, fmt.Errorf("gpio %d: set as output: %w", number, err)
	}
	return p, nil
}

// HostPins loads the periph host drivers on first use, then behaves like
// RegistryPins.
type HostPins struct {
	RegistryPins

	once sync.Once
	err  error
}

func (h *HostPins) OutputPin(number int) (gpio.PinOut, error) {
	h.once.Do(func() {
		if _, err := host.Init(); err != nil {
			h.err = fmt.Errorf("periph host init: %w", err)
		}
	})
	if h.err != nil {
		return nil, h.err
	}
	return h.RegistryPins.OutputPin(number)
}

// SimPins returns in-memory pins, for running without hardware.
type SimPins struct {
	mu   sync.Mutex
	pins map[int]*gpiotest.Pin
}

func (s *SimPins) OutputPin(number int) (gpio.PinOut, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.pins == nil {
		s.pins = map[int]*gpiotest.Pin{}
	}
	p, ok := s.pins[number]
	if !ok {
		p = &gpiotest.Pin{N: "GPIO" + strconv.Itoa(number), Num: number, Fn: "Out/Low"}
		s.pins[number] = p
	}
	return p, p.Out(gpio.Low)
}
