package location

import (
	"bufio"
	"context"
	"errors"
	"io"
	"strings"
	"sync"

	"github.com/adrianmo/go-nmea"
	"github.com/tarm/serial"
)

// ErrNoFix is returned when the sensor produced no usable position.
var ErrNoFix = errors.New("no valid GPS data found")

// DeviceSensorProvider reads NMEA GGA sentences from a GPS device on a serial port.
// The port is opened lazily and kept open between reads.
type DeviceSensorProvider struct {
	port     string
	baudRate int

	mu     sync.Mutex
	open   func(port string, baud int) (io.ReadCloser, error)
	conn   io.ReadCloser
	reader *bufio.Scanner
}

// NewDeviceSensorProvider creates a new instance of DeviceSensorProvider with the specified port and baud rate.
func NewDeviceSensorProvider(port string, baudRate int) *DeviceSensorProvider {
	return &DeviceSensorProvider{
		port:     port,
		baudRate: baudRate,
		open:     openSerial,
	}
}

func openSerial(port string, baud int) (io.ReadCloser, error) {
	return serial.OpenPort(&serial.Config{Name: port, Baud: baud})
}

// GetLocation returns the next GGA fix read from the device.
func (d *DeviceSensorProvider) GetLocation(ctx context.Context) (Location, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.conn == nil {
		conn, err := d.open(d.port, d.baudRate)
		if err != nil {
			return Location{}, err
		}
		d.conn = conn
		d.reader = bufio.NewScanner(conn)
	}

	for d.reader.Scan() {
		if err := ctx.Err(); err != nil {
			return Location{}, err
		}
		loc, ok, err := parseGGA(d.reader.Text())
		if err != nil {
			continue
		}
		if ok {
			return loc, nil
		}
	}

	// The stream ended; reopen on the next call.
	err := d.reader.Err()
	_ = d.conn.Close()
	d.conn, d.reader = nil, nil
	if err != nil {
		return Location{}, err
	}
	return Location{}, ErrNoFix
}

// parseGGA extracts a fix from a GGA sentence of any talker (GP, GN, GL...).
// ok is false for other sentence types and for GGA without a fix.
func parseGGA(line string) (Location, bool, error) {
	line = strings.TrimSpace(line)
	if len(line) < 6 || !strings.HasPrefix(line, "$") || line[3:6] != "GGA" {
		return Location{}, false, nil
	}

	sentence, err := nmea.Parse(line)
	if err != nil {
		return Location{}, false, err
	}

	gga, ok := sentence.(nmea.GGA)
	if !ok || gga.FixQuality == nmea.Invalid {
		return Location{}, false, nil
	}
	return Location{
		Latitude:  gga.Latitude,
		Longitude: gga.Longitude,
		Accuracy:  gga.HDOP, // HDOP as a proxy for accuracy
	}, true, nil
}

// Close releases the serial port.
func (d *DeviceSensorProvider) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.conn == nil {
		return nil
	}
	err := d.conn.Close()
	d.conn, d.reader = nil, nil
	return err
}
