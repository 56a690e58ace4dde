// gaze-dump decodes a gaze message stream and prints one point per line.
//
// Usage:
//
//	gaze-stream | gaze-dump
//	gaze-dump -in capture.bin -format csv -progress
package main

import (
	"bufio"
	"encoding/binary"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"

	"github.com/schollz/progressbar/v3"

	"github.com/teslashibe/go-gaze/pkg/protocol"
)

func main() {
	in := flag.String("in", "-", "input file, - for stdin")
	orderName := flag.String("payload-order", "little", "float byte order (little, big, native)")
	format := flag.String("format", "text", "output format (text, csv)")
	limit := flag.Int("n", 0, "stop after n messages (0 = all)")
	progress := flag.Bool("progress", false, "show a progress bar on stderr")
	flag.Parse()

	order, err := protocol.ParseByteOrder(*orderName)
	if err != nil {
		fmt.Fprintf(os.Stderr, "❌ %v\n", err)
		os.Exit(2)
	}
	if *format != "text" && *format != "csv" {
		fmt.Fprintf(os.Stderr, "❌ unknown format %q\n", *format)
		os.Exit(2)
	}

	var r io.Reader = os.Stdin
	size := int64(-1)
	if *in != "-" {
		f, err := os.Open(*in)
		if err != nil {
			fmt.Fprintf(os.Stderr, "❌ %v\n", err)
			os.Exit(1)
		}
		defer f.Close()
		if st, err := f.Stat(); err == nil {
			size = st.Size()
		}
		r = f
	}

	var bar *progressbar.ProgressBar
	if *progress {
		bar = progressbar.NewOptions64(size,
			progressbar.OptionSetDescription("decoding"),
			progressbar.OptionSetWriter(os.Stderr),
			progressbar.OptionShowBytes(true),
			progressbar.OptionShowCount(),
		)
	}

	out := bufio.NewWriter(os.Stdout)
	n, err := dump(r, out, order, *format, *limit, bar)
	if ferr := out.Flush(); err == nil {
		err = ferr
	}
	if bar != nil {
		bar.Finish()
		fmt.Fprintln(os.Stderr)
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "❌ after %d messages: %v\n", n, err)
		os.Exit(1)
	}
}

// dump decodes messages from r and writes them to w until EOF or limit.
// It returns the number of messages written.
func dump(r io.Reader, w io.Writer, order binary.ByteOrder, format string, limit int, bar *progressbar.ProgressBar) (int, error) {
	dec := protocol.NewDecoder(r, protocol.WithPayloadOrder(order))

	if format == "csv" {
		if _, err := fmt.Fprintln(w, "index,x,y"); err != nil {
			return 0, err
		}
	}

	n := 0
	for limit <= 0 || n < limit {
		p, err := dec.Decode()
		if errors.Is(err, io.EOF) {
			return n, nil
		}
		if err != nil {
			return n, err
		}

		switch format {
		case "csv":
			_, err = fmt.Fprintf(w, "%d,%g,%g\n", n, p.X, p.Y)
		default:
			_, err = fmt.Fprintf(w, "%.6f %.6f\n", p.X, p.Y)
		}
		if err != nil {
			return n, err
		}
		n++

		if bar != nil {
			bar.Add(protocol.MessageSize)
		}
	}
	return n, nil
}
