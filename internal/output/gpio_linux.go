//go:build linux

package output

import "github.com/warthog618/go-gpiocdev"

// CdevLine adapts a go-gpiocdev request to the GPIOLine interface.
type CdevLine struct {
	line *gpiocdev.Line
}

// OpenRelayLine requests offset on chip as a low, output line.
func OpenRelayLine(chip string, offset int) (*CdevLine, error) {
	line, err := gpiocdev.RequestLine(chip, offset, gpiocdev.AsOutput(0))
	if err != nil {
		return nil, err
	}
	return &CdevLine{line: line}, nil
}

func (c *CdevLine) SetValue(v int) error {
	return c.line.SetValue(v)
}

func (c *CdevLine) Close() error {
	return c.line.Close()
}
