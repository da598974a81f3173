package gpio

import "errors"

// FakeReader is a test double that returns scripted line levels.
type FakeReader struct {
	// Samples contains scripted levels to return.
	// Each call to Read() consumes the next sample.
	Samples []map[string]bool

	// index tracks current position in Samples
	index int

	// Closed tracks if Close was called
	Closed bool

	// ReadError, if set, will be returned by Read()
	ReadError error
}

// NewFakeReader creates a FakeReader with the given samples.
func NewFakeReader(samples ...map[string]bool) *FakeReader {
	return &FakeReader{Samples: samples}
}

// Read returns the next scripted sample.
// If samples are exhausted, returns the last sample repeatedly.
func (f *FakeReader) Read() (map[string]bool, error) {
	if f.ReadError != nil {
		return nil, f.ReadError
	}

	if len(f.Samples) == 0 {
		return nil, errors.New("no samples configured")
	}

	sample := f.Samples[f.index]
	if f.index < len(f.Samples)-1 {
		f.index++
	}

	out := make(map[string]bool, len(sample))
	for ch, on := range sample {
		out[ch] = on
	}
	return out, nil
}

// Close marks the reader as closed.
func (f *FakeReader) Close() error {
	f.Closed = true
	return nil
}

// Reset resets the reader to the beginning of samples.
func (f *FakeReader) Reset() {
	f.index = 0
	f.Closed = false
}

// FakeIndicators records LED writes.
type FakeIndicators struct {
	On     map[int]bool
	Writes int
	Closed bool
}

// NewFakeIndicators creates an empty FakeIndicators.
func NewFakeIndicators() *FakeIndicators {
	return &FakeIndicators{On: make(map[int]bool)}
}

// SetIndicator records the LED level.
func (f *FakeIndicators) SetIndicator(id int, on bool) {
	f.On[id] = on
	f.Writes++
}

// Close marks the indicators as closed.
func (f *FakeIndicators) Close() error {
	f.Closed = true
	return nil
}
