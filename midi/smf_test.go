package midi

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	gomidi "gitlab.com/gomidi/midi/v2"
	"gitlab.com/gomidi/midi/v2/smf"

	"go-infill/score"
)

func encodeTracks(t *testing.T, tracks ...smf.Track) *bytes.Buffer {
	t.Helper()
	s := smf.New()
	s.TimeFormat = smf.MetricTicks(TicksPerQuarter)
	for _, tr := range tracks {
		require.NoError(t, s.Add(tr))
	}
	var buf bytes.Buffer
	_, err := s.WriteTo(&buf)
	require.NoError(t, err)
	return &buf
}

func threeFour() *score.Fragment {
	f := score.NewFragment("waltz", score.Meter{Numerator: 3, Denominator: 4},
		score.Note{Start: 0, Duration: 1, Pitch: 60, Velocity: 90},
		score.Note{Start: 0, Duration: 2, Pitch: 64, Velocity: 70},
		score.Note{Start: 1, Duration: 0.5, Pitch: 67, Velocity: 80},
		score.Note{Start: 3, Duration: 3, Pitch: 72, Velocity: 100},
	)
	f.Tempos = []score.TempoMark{{Offset: 0, BPM: 90}, {Offset: 3, BPM: 120}}
	f.Keys = []score.KeyMark{{Key: score.Key{Tonic: 7}}}
	return f
}

func TestEncodeRoundTrip(t *testing.T) {
	in := threeFour()
	s, err := Encode(in)
	require.NoError(t, err)

	var buf bytes.Buffer
	_, err = s.WriteTo(&buf)
	require.NoError(t, err)

	out, err := ReadFragment(&buf, "waltz")
	require.NoError(t, err)

	assert.Equal(t, "waltz", out.Name)
	require.Len(t, out.Meters, 1)
	assert.Equal(t, "3/4", out.Meters[0].String())
	assert.Empty(t, out.Keys, "key markers are not written")

	require.Len(t, out.Tempos, 2)
	assert.InDelta(t, 90, out.Tempos[0].BPM, 0.01)
	assert.InDelta(t, 120, out.Tempos[1].BPM, 0.01)
	assert.Equal(t, 3.0, out.Tempos[1].Offset)

	require.Len(t, out.Events, len(in.Events))
	for i := range in.Events {
		assert.Equal(t, in.Events[i], out.Events[i], "event %d", i)
	}
}

func TestEncodeDropsDuplicatePitches(t *testing.T) {
	f := &score.Fragment{
		Meters: []score.Meter{{Numerator: 4, Denominator: 4}},
		Events: []score.Event{score.Chord(0, 1, 0, 62, 62, 65)},
	}
	s, err := Encode(f)
	require.NoError(t, err)

	var buf bytes.Buffer
	_, err = s.WriteTo(&buf)
	require.NoError(t, err)
	out, err := ReadFragment(&buf, "dup")
	require.NoError(t, err)

	require.Len(t, out.Events, 1)
	assert.Equal(t, 2, out.Events[0].Voices())
	assert.Equal(t, uint8(1), out.Events[0].Velocity(), "silent notes are written at velocity 1")
}

func TestReadMergesTracksAndSkipsDrums(t *testing.T) {
	var conductor smf.Track
	conductor.Add(0, smf.MetaMeter(4, 4))
	conductor.Add(0, smf.MetaTempo(100))
	conductor.Close(0)

	var melody smf.Track
	melody.Add(0, gomidi.NoteOn(0, 60, 80))
	melody.Add(TicksPerQuarter, gomidi.NoteOff(0, 60))
	melody.Add(0, gomidi.NoteOn(0, 62, 80))
	melody.Close(TicksPerQuarter)

	var drums smf.Track
	drums.Add(0, gomidi.NoteOn(drumChannel, 36, 120))
	drums.Add(TicksPerQuarter, gomidi.NoteOff(drumChannel, 36))
	drums.Close(0)

	f, err := ReadFragment(encodeTracks(t, conductor, melody, drums), "merged")
	require.NoError(t, err)

	require.Len(t, f.Events, 2)
	assert.Equal(t, uint8(60), f.Events[0].Pitch(0))
	assert.Equal(t, 1, f.Events[0].Voices())
	// the unterminated note ends with its track
	assert.Equal(t, 1.0, f.Events[1].Offset)
	assert.Equal(t, 1.0, f.Events[1].Duration())
	assert.Equal(t, 100.0, f.Tempo())
}

func TestReadPairsRepeatedNotesInOrder(t *testing.T) {
	var tr smf.Track
	tr.Add(0, gomidi.NoteOn(0, 60, 50))
	tr.Add(TicksPerQuarter, gomidi.NoteOn(0, 60, 100))
	tr.Add(TicksPerQuarter, gomidi.NoteOff(0, 60))
	tr.Add(TicksPerQuarter, gomidi.NoteOff(0, 60))
	tr.Close(0)

	f, err := ReadFragment(encodeTracks(t, tr), "repeat")
	require.NoError(t, err)

	require.Len(t, f.Events, 2)
	assert.Equal(t, score.Note{Start: 0, Duration: 2, Pitch: 60, Velocity: 50}, f.Events[0].Notes[0])
	assert.Equal(t, score.Note{Start: 1, Duration: 2, Pitch: 60, Velocity: 100}, f.Events[1].Notes[0])
}

func TestReadRejectsMeterChange(t *testing.T) {
	var tr smf.Track
	tr.Add(0, smf.MetaMeter(4, 4))
	tr.Add(0, gomidi.NoteOn(0, 60, 80))
	tr.Add(4*TicksPerQuarter, gomidi.NoteOff(0, 60))
	tr.Add(0, smf.MetaMeter(3, 4))
	tr.Close(0)

	_, err := ReadFragment(encodeTracks(t, tr), "change")
	assert.ErrorIs(t, err, score.ErrUnsupportedTimeSignatureChange)
}

func TestReadAcceptsRepeatedMeter(t *testing.T) {
	var a, b smf.Track
	a.Add(0, smf.MetaMeter(6, 8))
	a.Add(0, gomidi.NoteOn(0, 60, 80))
	a.Add(TicksPerQuarter, gomidi.NoteOff(0, 60))
	a.Close(0)
	b.Add(0, smf.MetaMeter(6, 8))
	b.Close(0)

	f, err := ReadFragment(encodeTracks(t, a, b), "six")
	require.NoError(t, err)
	bl, err := f.BarLength()
	require.NoError(t, err)
	assert.Equal(t, 3.0, bl)
}

func TestMetaKey(t *testing.T) {
	k, ok := metaKey([]byte{0xFF, 0x59, 0x02, 0x02, 0x00})
	require.True(t, ok)
	assert.Equal(t, score.Key{Tonic: 2}, k)

	k, ok = metaKey([]byte{0xFF, 0x59, 0x02, 0xFD, 0x01})
	require.True(t, ok)
	assert.Equal(t, "C minor", k.String())

	_, ok = metaKey([]byte{0xFF, 0x51, 0x03, 0x07, 0xA1, 0x20})
	assert.False(t, ok)
}

func TestReadGarbage(t *testing.T) {
	_, err := ReadFragment(bytes.NewReader([]byte("not a midi file")), "junk")
	var pe *score.ParseError
	assert.ErrorAs(t, err, &pe)
}

func TestLoadFragment(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "theme.mid")
	_, err := WriteFragment(threeFour(), path)
	require.NoError(t, err)

	f, err := LoadFragment(path)
	require.NoError(t, err)
	assert.Equal(t, "theme", f.Name)
	assert.Equal(t, 4, f.NoteCount())

	_, err = LoadFragment(filepath.Join(dir, "missing.mid"))
	var pe *score.ParseError
	require.ErrorAs(t, err, &pe)
	assert.Equal(t, filepath.Join(dir, "missing.mid"), pe.Path)

	junk := filepath.Join(dir, "junk.mid")
	require.NoError(t, os.WriteFile(junk, []byte("garbage"), 0644))
	_, err = LoadFragment(junk)
	require.ErrorAs(t, err, &pe)
	assert.Equal(t, junk, pe.Path)
}

func TestWriteFragmentLeavesNoPartialFile(t *testing.T) {
	dir := t.TempDir()

	good := filepath.Join(dir, "good.mid")
	n, err := WriteFragment(threeFour(), good)
	require.NoError(t, err)
	info, err := os.Stat(good)
	require.NoError(t, err)
	assert.Equal(t, n, info.Size())

	bad := threeFour()
	bad.Meters = append(bad.Meters, score.Meter{Offset: 3, Numerator: 5, Denominator: 4})
	_, err = WriteFragment(bad, filepath.Join(dir, "bad.mid"))
	assert.ErrorIs(t, err, score.ErrInconsistentTimeSignature)

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "good.mid", entries[0].Name())
}
