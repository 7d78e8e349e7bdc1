// Package midi loads fragments from and writes them to standard MIDI files.
package midi

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"path/filepath"
	"sort"
	"strings"

	gomidi "gitlab.com/gomidi/midi/v2"
	"gitlab.com/gomidi/midi/v2/smf"

	"go-infill/debug"
	"go-infill/score"
)

// TicksPerQuarter is the resolution of written files
const TicksPerQuarter = 960

// LoadFragment reads a standard MIDI file. The fragment is named after the
// file without its extension.
func LoadFragment(path string) (*score.Fragment, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, &score.ParseError{Path: path, Err: err}
	}
	defer f.Close()

	name := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	frag, err := ReadFragment(f, name)
	if err != nil {
		var pe *score.ParseError
		if errors.As(err, &pe) {
			pe.Path = path
		}
		return nil, err
	}
	debug.Log("load", "%s: %d events, %d notes, %.2f quarters", path, len(frag.Events), frag.NoteCount(), frag.Duration())
	return frag, nil
}

type pending struct {
	tick     uint64
	velocity uint8
}

// ReadFragment parses SMF data. Notes of all tracks are merged; drums on
// channel 10 are skipped. Notes starting on the same tick form one event.
func ReadFragment(r io.Reader, name string) (*score.Fragment, error) {
	s, err := smf.ReadFrom(r)
	if err != nil {
		return nil, &score.ParseError{Path: name, Err: err}
	}
	ticks, ok := s.TimeFormat.(smf.MetricTicks)
	if !ok || ticks == 0 {
		return nil, &score.ParseError{Path: name, Err: fmt.Errorf("unsupported time format %v", s.TimeFormat)}
	}
	ppq := float64(ticks)

	frag := &score.Fragment{Name: name}
	var notes []score.Note

	for _, track := range s.Tracks {
		var abs uint64
		open := make(map[[2]uint8][]pending)

		for _, ev := range track {
			abs += uint64(ev.Delta)
			at := float64(abs) / ppq
			msg := ev.Message
			note := gomidi.Message(msg)

			var ch, key, vel, num, denom uint8
			var bpm float64
			switch {
			case note.GetNoteStart(&ch, &key, &vel):
				if ch == drumChannel {
					continue
				}
				id := [2]uint8{ch, key}
				open[id] = append(open[id], pending{tick: abs, velocity: vel})
			case note.GetNoteEnd(&ch, &key):
				id := [2]uint8{ch, key}
				started := open[id]
				if len(started) == 0 {
					continue
				}
				p := started[0]
				open[id] = started[1:]
				if abs > p.tick {
					notes = append(notes, score.Note{
						Start:    float64(p.tick) / ppq,
						Duration: float64(abs-p.tick) / ppq,
						Pitch:    key,
						Velocity: p.velocity,
					})
				}
			case msg.GetMetaTempo(&bpm):
				frag.Tempos = append(frag.Tempos, score.TempoMark{Offset: at, BPM: bpm})
			case msg.GetMetaMeter(&num, &denom):
				frag.Meters = append(frag.Meters, score.Meter{Offset: at, Numerator: num, Denominator: denom})
			default:
				if k, ok := metaKey(msg); ok {
					frag.Keys = append(frag.Keys, score.KeyMark{Offset: at, Key: k})
				}
			}
		}

		// Notes left hanging end with their track
		for id, started := range open {
			for _, p := range started {
				if abs > p.tick {
					notes = append(notes, score.Note{
						Start:    float64(p.tick) / ppq,
						Duration: float64(abs-p.tick) / ppq,
						Pitch:    id[1],
						Velocity: p.velocity,
					})
				}
			}
		}
	}

	if distinctMeters(frag.Meters) > 1 {
		return nil, fmt.Errorf("%s: %d time signatures: %w", name, len(frag.Meters), score.ErrUnsupportedTimeSignatureChange)
	}

	frag.Events = score.Group(notes)
	frag.Sort()
	return frag, nil
}

// distinctMeters counts the first meter plus every one that differs from
// it, so a time signature repeated on several tracks counts once
func distinctMeters(meters []score.Meter) int {
	n := 0
	for i, m := range meters {
		if i == 0 || m.Numerator != meters[0].Numerator || m.Denominator != meters[0].Denominator {
			n++
		}
	}
	return n
}

// metaKey decodes a key signature meta event (FF 59 02 sf mi)
func metaKey(msg []byte) (score.Key, bool) {
	if len(msg) < 5 || msg[0] != 0xFF || msg[1] != 0x59 || msg[2] != 0x02 {
		return score.Key{}, false
	}
	return score.KeyFromSignature(int(int8(msg[3])), msg[4] == 1), true
}

func toTick(offset float64) uint32 {
	return uint32(math.Round(max(0, offset) * TicksPerQuarter))
}

// Encode converts a fragment to an SMF with a conductor track (meter and
// tempos) and a single note track. Key markers are never written.
func Encode(f *score.Fragment) (*smf.SMF, error) {
	s := smf.New()
	s.TimeFormat = smf.MetricTicks(TicksPerQuarter)

	barLength, err := f.BarLength()
	if err != nil {
		return nil, err
	}
	meter := score.MeterForBarLength(barLength)
	if len(f.Meters) > 0 {
		meter = f.Meters[0]
	}

	tempos := append([]score.TempoMark(nil), f.Tempos...)
	sort.SliceStable(tempos, func(i, j int) bool { return tempos[i].Offset < tempos[j].Offset })

	var conductor smf.Track
	conductor.Add(0, smf.MetaMeter(meter.Numerator, meter.Denominator))
	var last uint32
	for _, t := range tempos {
		tick := toTick(t.Offset)
		conductor.Add(tick-last, smf.MetaTempo(t.BPM))
		last = tick
	}
	conductor.Close(0)
	if err := s.Add(conductor); err != nil {
		return nil, fmt.Errorf("error adding conductor track: %w", err)
	}

	var events []Event
	for _, e := range f.Events {
		seen := make(map[uint8]bool, len(e.Notes))
		for _, n := range e.Notes {
			if seen[n.Pitch] {
				continue
			}
			seen[n.Pitch] = true
			start := toTick(n.Start)
			end := max(start+1, toTick(n.End()))
			events = append(events,
				Event{Tick: start, Type: NoteOn, Note: n.Pitch, Velocity: max(1, n.Velocity)},
				Event{Tick: end, Type: NoteOff, Note: n.Pitch},
			)
		}
	}
	sort.SliceStable(events, func(i, j int) bool { return events[i].before(events[j]) })

	var track smf.Track
	last = 0
	for _, ev := range events {
		track.Add(ev.Tick-last, ev.Message())
		last = ev.Tick
	}
	track.Close(0)
	if err := s.Add(track); err != nil {
		return nil, fmt.Errorf("error adding note track: %w", err)
	}
	return s, nil
}

// WriteFragment writes f to path. The file is only replaced once the whole
// output has been encoded, so a failure never leaves a partial file behind.
// It returns the number of bytes written.
func WriteFragment(f *score.Fragment, path string) (int64, error) {
	s, err := Encode(f)
	if err != nil {
		return 0, err
	}

	var buf bytes.Buffer
	if _, err := s.WriteTo(&buf); err != nil {
		return 0, fmt.Errorf("error encoding MIDI file: %w", err)
	}

	dir := filepath.Dir(path)
	tmp, err := os.CreateTemp(dir, ".infill-*.mid")
	if err != nil {
		return 0, err
	}
	if _, err := tmp.Write(buf.Bytes()); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return 0, fmt.Errorf("error writing MIDI file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return 0, err
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		os.Remove(tmp.Name())
		return 0, err
	}

	debug.Log("write", "%s: %d events, %d bytes", path, len(f.Events), buf.Len())
	return int64(buf.Len()), nil
}
