// Command ktrace decodes a captured scheduler or VFS trace -- the line
// format kernel/sched.DumpTrace and kernel/vfs.DumpTrace emit -- and
// renders it as a pprof profile so it can be loaded into `go tool
// pprof` for offline analysis of kernel scheduling or IO behavior.
package main

import (
	"bufio"
	"flag"
	"fmt"
	"io"
	"os"
	"regexp"
	"strconv"

	"github.com/google/pprof/profile"
)

var (
	kind    = flag.String("kind", "sched", `trace kind: "sched" or "vfs"`)
	inPath  = flag.String("in", "-", "trace file to read (default stdin)")
	outPath = flag.String("out", "trace.pb.gz", "pprof profile to write")
)

var (
	switchLine = regexp.MustCompile(`^switch tick=(\d+) from=(\d+) to=(\d+) reason=(\S+)$`)
	nodeLine   = regexp.MustCompile(`^(open|close) seq=(\d+) handle=(\d+) path=(\S+)$`)
)

func main() {
	flag.Parse()

	in := io.Reader(os.Stdin)
	if *inPath != "-" {
		f, err := os.Open(*inPath)
		if err != nil {
			fatal(err)
		}
		defer f.Close()
		in = f
	}

	var (
		prof *profile.Profile
		err  error
	)
	switch *kind {
	case "sched":
		prof, err = buildSchedProfile(in)
	case "vfs":
		prof, err = buildVFSProfile(in)
	default:
		fatal(fmt.Errorf("unknown -kind %q, want \"sched\" or \"vfs\"", *kind))
	}
	if err != nil {
		fatal(err)
	}

	out, err := os.Create(*outPath)
	if err != nil {
		fatal(err)
	}
	defer out.Close()

	if err := prof.Write(out); err != nil {
		fatal(err)
	}
}

func fatal(err error) {
	fmt.Fprintln(os.Stderr, "ktrace:", err)
	os.Exit(1)
}

// builder interns one profile.Location/profile.Function pair per
// distinct name, so repeated samples against the same thread or path
// share a stack frame the way a real CPU profile does.
type builder struct {
	prof      *profile.Profile
	locations map[string]*profile.Location
	nextID    uint64
}

func newBuilder(sampleType, unit string) *builder {
	return &builder{
		prof: &profile.Profile{
			SampleType: []*profile.ValueType{{Type: sampleType, Unit: unit}},
			PeriodType: &profile.ValueType{Type: sampleType, Unit: unit},
			Period:     1,
		},
		locations: map[string]*profile.Location{},
	}
}

func (b *builder) location(name string) *profile.Location {
	if loc, ok := b.locations[name]; ok {
		return loc
	}
	b.nextID++
	fn := &profile.Function{ID: b.nextID, Name: name}
	loc := &profile.Location{ID: b.nextID, Line: []profile.Line{{Function: fn}}}
	b.prof.Function = append(b.prof.Function, fn)
	b.prof.Location = append(b.prof.Location, loc)
	b.locations[name] = loc
	return loc
}

func (b *builder) sample(locName string, value int64, labels map[string][]string) {
	b.prof.Sample = append(b.prof.Sample, &profile.Sample{
		Location: []*profile.Location{b.location(locName)},
		Value:    []int64{value},
		Label:    labels,
	})
}

// buildSchedProfile turns a stream of "switch tick=.. from=.. to=..
// reason=.." lines into a profile with one sample per switch, charged
// to the outgoing thread for the ticks elapsed since the previous
// switch, and labeled with the incoming thread and the reason the
// scheduler gave for the switch.
func buildSchedProfile(r io.Reader) (*profile.Profile, error) {
	b := newBuilder("tick", "tick")

	var (
		lastTick uint64
		haveLast bool
	)

	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		m := switchLine.FindStringSubmatch(scanner.Text())
		if m == nil {
			continue
		}

		tick, _ := strconv.ParseUint(m[1], 10, 64)
		from, to, reason := m[2], m[3], m[4]

		delta := int64(1)
		if haveLast && tick > lastTick {
			delta = int64(tick - lastTick)
		}
		lastTick, haveLast = tick, true

		b.sample("thread-"+from, delta, map[string][]string{
			"to":     {"thread-" + to},
			"reason": {reason},
		})
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}
	return b.prof, nil
}

// buildVFSProfile turns a stream of "open seq=.. handle=.. path=.."
// and "close seq=.. handle=.. path=.." lines into a profile with one
// sample per closed node, charged to its path for the number of
// sequence ticks it stayed open. A node still open when the trace
// ended is reported as a one-tick sample labeled "unclosed" rather
// than silently dropped.
func buildVFSProfile(r io.Reader) (*profile.Profile, error) {
	b := newBuilder("io", "count")

	type openEvent struct {
		seq  uint64
		path string
	}
	open := map[string]openEvent{}

	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		m := nodeLine.FindStringSubmatch(scanner.Text())
		if m == nil {
			continue
		}

		op, handle, path := m[1], m[3], m[4]
		seq, _ := strconv.ParseUint(m[2], 10, 64)

		switch op {
		case "open":
			open[handle] = openEvent{seq: seq, path: path}
		case "close":
			ev, ok := open[handle]
			if !ok {
				ev = openEvent{seq: seq, path: path}
			}
			delete(open, handle)

			duration := int64(seq - ev.seq)
			if duration <= 0 {
				duration = 1
			}
			b.sample(ev.path, duration, map[string][]string{"handle": {handle}})
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}

	for handle, ev := range open {
		b.sample(ev.path, 1, map[string][]string{"handle": {handle}, "unclosed": {"true"}})
	}
	return b.prof, nil
}
