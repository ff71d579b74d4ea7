// Command obdcat is a demonstration harness for the protocol engine: it
// loads a YAML catalog, builds a request for one named parameter, accepts
// raw response frames as hex strings, and prints the parsed numeric and
// literal results. It is not part of the core library's public contract —
// a real caller wires obdkit.Engine directly against its own transport and
// catalog source.
package main

import (
	"bufio"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"

	flag "github.com/spf13/pflag"

	"github.com/preet/libobdref-go/build"
	"github.com/preet/libobdref-go/catalog"
	"github.com/preet/libobdref-go/catalogio"
	"github.com/preet/libobdref-go/evalexpr"
	"github.com/preet/libobdref-go/obdkit"
	"github.com/preet/libobdref-go/wire"
)

var CmdLog = log.New(os.Stderr, filepath.Base(os.Args[0])+": ", 0)

var (
	catalogFlag  = flag.String("catalog", "", "Path to the YAML parameter `catalog`.")
	specFlag     = flag.String("spec", "", "Catalog spec `name`, e.g. SAEJ1979.")
	protocolFlag = flag.String("protocol", "", "Protocol `name` as declared in the catalog.")
	addressFlag  = flag.String("address", "Default", "Address `name` within the protocol.")
	paramFlag    = flag.String("param", "", "Parameter `name` to build and parse.")
	frameFlags   = flag.StringArray("frame", nil, "A raw response `frame` as hex digits"+
		"\n(header+data, no checksum). May be repeated; reads stdin if omitted.")
)

func main() {
	log.SetFlags(0)
	flag.Parse()

	for _, required := range []struct{ name, value string }{
		{"catalog", *catalogFlag}, {"spec", *specFlag}, {"protocol", *protocolFlag}, {"param", *paramFlag},
	} {
		if required.value == "" {
			CmdLog.Fatalf("--%s is required", required.name)
		}
	}

	specs, err := catalogio.ReadFile(*catalogFlag)
	if err != nil {
		CmdLog.Fatal(err)
	}

	sandbox := evalexpr.New()
	cat, err := catalog.Build(specs, sandbox)
	if err != nil {
		CmdLog.Fatal(err)
	}

	eng := obdkit.New(cat, sandbox, build.DefaultOptions())

	pf, err := eng.Build(*specFlag, *protocolFlag, *addressFlag, *paramFlag)
	if err != nil {
		CmdLog.Fatal(err)
	}
	for _, md := range pf.Messages {
		fmt.Printf("request: %s %s\n", md.RequestHeader, flattenRequest(md.RequestData))
	}

	rawFrames, err := readFrames(len(pf.Messages))
	if err != nil {
		CmdLog.Fatal(err)
	}

	records, err := eng.Parse(pf, rawFrames)
	if err != nil {
		CmdLog.Fatal(err)
	}

	for _, line := range eng.Drain() {
		CmdLog.Print(line)
	}
	for _, rec := range records {
		for _, n := range rec.NumData {
			fmt.Printf("%s = %g %s\n", n.Property, n.Value, n.Units)
		}
		for _, l := range rec.LitData {
			if l.Value {
				fmt.Printf("%s = %s\n", l.Property, l.ValueIfTrue)
			} else {
				fmt.Printf("%s = %s\n", l.Property, l.ValueIfFalse)
			}
		}
	}
}

func flattenRequest(frames []wire.Bytes) wire.Bytes {
	var out wire.Bytes
	for _, f := range frames {
		out = out.Concat(f)
	}
	return out
}

// readFrames collects --frame flags, or stdin lines if none were given,
// into one raw-frame list per message, assuming every frame on the
// command line/stdin belongs to the parameter's first (and typically
// only) MessageData.
func readFrames(messageCount int) ([][]wire.Bytes, error) {
	var hexLines []string
	if len(*frameFlags) > 0 {
		hexLines = *frameFlags
	} else {
		scanner := bufio.NewScanner(os.Stdin)
		for scanner.Scan() {
			line := strings.TrimSpace(scanner.Text())
			if line != "" {
				hexLines = append(hexLines, line)
			}
		}
		if err := scanner.Err(); err != nil {
			return nil, fmt.Errorf("obdcat: read stdin: %w", err)
		}
	}

	var frames []wire.Bytes
	for _, line := range hexLines {
		b, err := wire.ParseHexString(strings.ReplaceAll(line, " ", ""))
		if err != nil {
			return nil, fmt.Errorf("obdcat: %w", err)
		}
		frames = append(frames, b)
	}

	rawFrames := make([][]wire.Bytes, messageCount)
	if messageCount > 0 {
		rawFrames[0] = frames
	}
	return rawFrames, nil
}
