// SPDX-FileCopyrightText: 2026 The swtp-go Authors
//
// SPDX-License-Identifier: GPL-3.0-or-later

package session

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"math/rand"
	"strings"
	"testing"
	"time"

	"github.com/swtp/swtp-go/pkg/arq"
	"github.com/swtp/swtp-go/pkg/conn"
	"github.com/swtp/swtp-go/pkg/fault"
	"github.com/swtp/swtp-go/pkg/segment"
	"github.com/swtp/swtp-go/pkg/transport"
)

func testConfig() conn.Config {
	return conn.Config{ARQ: arq.Config{Timeout: 20 * time.Millisecond}}
}

func randomData(size int) []byte {
	data := make([]byte, size)
	rand.New(rand.NewSource(int64(size))).Read(data)
	return data
}

type sendFunc func(ctx context.Context, c Conn) (Report, error)

type transferResult struct {
	sendReport Report
	recvReport Report
	output     []byte
	recvConn   *conn.Conn
}

// transfer runs a sending session over an in-memory pair of connections.
func transfer(t *testing.T, sendConfig, recvConfig conn.Config, send sendFunc) transferResult {
	hub := transport.NewHub()

	sendTransport, err := transport.NewMemoryConn(hub, "sender")
	if err != nil {
		t.Fatal(err)
	}
	recvTransport, err := transport.NewMemoryConn(hub, "receiver")
	if err != nil {
		t.Fatal(err)
	}
	defer recvTransport.Close()

	return runTransfer(t, sendTransport, recvTransport, sendConfig, recvConfig, send)
}

func runTransfer(t *testing.T, sendTransport, recvTransport transport.Conn, sendConfig, recvConfig conn.Config, send sendFunc) (res transferResult) {
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Second)
	defer cancel()

	var output bytes.Buffer
	type recvResult struct {
		report Report
		c      *conn.Conn
		err    error
	}
	recvChan := make(chan recvResult)

	go func() {
		c, err := conn.Accept(ctx, recvTransport, recvConfig)
		if err != nil {
			recvChan <- recvResult{err: err}
			return
		}

		report, err := Receive(ctx, c, &output)
		recvChan <- recvResult{report, c, err}
	}()

	c, err := conn.Dial(ctx, sendTransport, recvTransport.LocalAddr(), sendConfig)
	if err != nil {
		t.Fatal(err)
	}

	if res.sendReport, err = send(ctx, c); err != nil {
		t.Fatal(err)
	}

	recv := <-recvChan
	if recv.err != nil {
		t.Fatal(recv.err)
	}

	res.recvReport = recv.report
	res.recvConn = recv.c
	res.output = output.Bytes()
	return
}

func sendFile(data []byte) sendFunc {
	return func(ctx context.Context, c Conn) (Report, error) {
		return SendFile(ctx, c, bytes.NewReader(data), int64(len(data)), DefaultOptions())
	}
}

func checkTransfer(t *testing.T, res transferResult, input []byte) {
	if !bytes.Equal(res.output, input) {
		t.Fatalf("output of %d octets differs from input of %d octets", len(res.output), len(input))
	}

	chunks := uint64(ChunkCount(int64(len(input))))
	if res.sendReport.Segments != chunks || res.recvReport.Segments != chunks {
		t.Fatalf("expected %d segments, sent %d and received %d", chunks, res.sendReport.Segments, res.recvReport.Segments)
	}
	if res.sendReport.Digest != res.recvReport.Digest {
		t.Fatalf("digests differ: %#04x != %#04x", res.sendReport.Digest, res.recvReport.Digest)
	}
	if res.recvConn.State() != conn.Closed {
		t.Fatalf("receiving connection is %v", res.recvConn.State())
	}
}

func TestSendFile(t *testing.T) {
	sizes := []int{0, 1, segment.MaxPayloadSize - 1, segment.MaxPayloadSize, segment.MaxPayloadSize + 1, 10000, 65536}

	for _, size := range sizes {
		t.Run(fmt.Sprintf("size-%d", size), func(t *testing.T) {
			input := randomData(size)
			res := transfer(t, testConfig(), testConfig(), sendFile(input))
			checkTransfer(t, res, input)
		})
	}
}

func TestSendFileLoss(t *testing.T) {
	recvConfig := testConfig()
	recvConfig.ARQ.ReceiveFault = fault.Drop(10)

	input := randomData(50 * segment.MaxPayloadSize)
	res := transfer(t, testConfig(), recvConfig, sendFile(input))
	checkTransfer(t, res, input)

	if res.sendReport.Retransmissions == 0 {
		t.Fatal("no retransmission occurred")
	}
	if res.recvReport.Stats.Dropped == 0 {
		t.Fatal("receiver dropped nothing")
	}
}

func TestSendFileCorruption(t *testing.T) {
	sendConfig := testConfig()
	sendConfig.ARQ.SendFault = fault.Corrupt(20, 200)

	input := randomData(60*segment.MaxPayloadSize + 17)
	res := transfer(t, sendConfig, testConfig(), sendFile(input))
	checkTransfer(t, res, input)

	if res.recvReport.ChecksumFailures == 0 {
		t.Fatal("receiver rejected no corrupted segment")
	}
	if res.sendReport.Stats.Corrupted == 0 {
		t.Fatal("sender corrupted nothing")
	}
}

func TestSendFileLossyHub(t *testing.T) {
	// Every seventh datagram is lost in both directions.
	hub := transport.NewHubDrop(7)

	sendTransport, _ := transport.NewMemoryConn(hub, "sender")
	recvTransport, _ := transport.NewMemoryConn(hub, "receiver")
	defer recvTransport.Close()

	input := randomData(20 * segment.MaxPayloadSize)
	res := runTransfer(t, sendTransport, recvTransport, testConfig(), testConfig(), sendFile(input))
	checkTransfer(t, res, input)

	// Lost ACKs result in retransmitted data, which must not be written twice.
	if res.recvReport.Duplicates == 0 {
		t.Fatal("receiver answered no duplicates")
	}
}

func TestSendFileUDP(t *testing.T) {
	sendTransport, err := transport.ListenUDP("127.0.0.1:0")
	if err != nil {
		t.Fatal(err)
	}
	recvTransport, err := transport.ListenUDP("127.0.0.1:0")
	if err != nil {
		t.Fatal(err)
	}
	defer recvTransport.Close()

	input := randomData(30000)
	res := runTransfer(t, sendTransport, recvTransport, testConfig(), testConfig(), sendFile(input))
	checkTransfer(t, res, input)
}

func TestSendText(t *testing.T) {
	tests := []struct {
		input  string
		output string
	}{
		{"hello\nworld\nend\nignored\n", "hello\nworld\n"},
		{"no sentinel\nat all", "no sentinel\nat all"},
		{"no sentinel\n", "no sentinel\n"},
		{"carriage\r\r\nreturns\r\nend\r\n", "carriage\r\nreturns\n"},
		{"\r\nwindows\r\nend\r\n", "\nwindows\n"},
		{"end\n", ""},
		{"", ""},
		{strings.Repeat("x", 2*segment.MaxPayloadSize) + "\nend\n", strings.Repeat("x", 2*segment.MaxPayloadSize) + "\n"},
	}

	for i, test := range tests {
		t.Run(fmt.Sprintf("text-%d", i), func(t *testing.T) {
			res := transfer(t, testConfig(), testConfig(), func(ctx context.Context, c Conn) (Report, error) {
				return SendText(ctx, c, strings.NewReader(test.input), DefaultOptions())
			})

			if string(res.output) != test.output {
				t.Fatalf("expected %q, got %q", test.output, res.output)
			}
			if res.sendReport.Digest != res.recvReport.Digest {
				t.Fatal("digests differ")
			}
		})
	}
}

func TestSendTextSentinel(t *testing.T) {
	opts := DefaultOptions()
	opts.Sentinel = "quit"

	res := transfer(t, testConfig(), testConfig(), func(ctx context.Context, c Conn) (Report, error) {
		return SendText(ctx, c, strings.NewReader("end\nquit\nmore\n"), opts)
	})

	if string(res.output) != "end\n" {
		t.Fatalf("unexpected output %q", res.output)
	}
}

// recordingConn records the exchanged segments of a Conn.
type recordingConn struct {
	Conn
	segments []segment.Segment
}

func (rc *recordingConn) Exchange(ctx context.Context, seg segment.Segment) (segment.Segment, error) {
	rc.segments = append(rc.segments, seg)
	return rc.Conn.Exchange(ctx, seg)
}

func TestSequenceNumbers(t *testing.T) {
	tests := []struct {
		name    string
		ackBase uint32
		send    func(ctx context.Context, c Conn) (Report, error)
		chunks  int
	}{
		{"file", DefaultFileAckBase, sendFile(randomData(5*segment.MaxPayloadSize - 3)), 5},
		{"text", DefaultTextAckBase, func(ctx context.Context, c Conn) (Report, error) {
			return SendText(ctx, c, strings.NewReader("a\nb\nc\nend\n"), DefaultOptions())
		}, 3},
	}

	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			var rc *recordingConn
			transfer(t, testConfig(), testConfig(), func(ctx context.Context, c Conn) (Report, error) {
				rc = &recordingConn{Conn: c}
				return test.send(ctx, rc)
			})

			if len(rc.segments) != test.chunks {
				t.Fatalf("expected %d segments, got %d", test.chunks, len(rc.segments))
			}
			for i, seg := range rc.segments {
				if seg.DataSequence != uint32(i+1) || seg.AckSequence != test.ackBase+uint32(i) {
					t.Fatalf("segment %d has data sequence %d and ack sequence %d", i, seg.DataSequence, seg.AckSequence)
				}
			}
		})
	}
}

func TestAckBaseOfHandshake(t *testing.T) {
	// The first chunk's header equals the handshake's final ACK.
	opts := DefaultOptions()
	opts.FileAckBase = 1
	opts.TextAckBase = 1

	input := randomData(3 * segment.MaxPayloadSize)
	res := transfer(t, testConfig(), testConfig(), func(ctx context.Context, c Conn) (Report, error) {
		return SendFile(ctx, c, bytes.NewReader(input), int64(len(input)), opts)
	})
	checkTransfer(t, res, input)

	res = transfer(t, testConfig(), testConfig(), func(ctx context.Context, c Conn) (Report, error) {
		return SendText(ctx, c, strings.NewReader("a\nb\nend\n"), opts)
	})
	if string(res.output) != "a\nb\n" {
		t.Fatalf("unexpected output %q", res.output)
	}
}

func TestOptionsCheckValid(t *testing.T) {
	if err := DefaultOptions().CheckValid(); err != nil {
		t.Fatal(err)
	}

	tests := []Options{
		{TextAckBase: 1, FileAckBase: DefaultFileAckBase, Sentinel: DefaultSentinel},
		{TextAckBase: DefaultTextAckBase, FileAckBase: 0, Sentinel: DefaultSentinel},
		{TextAckBase: DefaultTextAckBase, FileAckBase: DefaultFileAckBase},
	}
	for _, opts := range tests {
		if err := opts.CheckValid(); err == nil {
			t.Fatalf("accepted %+v", opts)
		}
	}
}

type failingReader struct {
	data []byte
}

func (fr *failingReader) Read(p []byte) (int, error) {
	if len(fr.data) == 0 {
		return 0, errors.New("disk on fire")
	}

	n := copy(p, fr.data)
	fr.data = fr.data[n:]
	return n, nil
}

func TestSendFileErrors(t *testing.T) {
	tests := []struct {
		name string
		send func(ctx context.Context, c Conn) (Report, error)
		err  error
	}{
		{"short", func(ctx context.Context, c Conn) (Report, error) {
			return SendFile(ctx, c, bytes.NewReader(randomData(100)), 3000, DefaultOptions())
		}, ErrShortSource},
		{"failing", func(ctx context.Context, c Conn) (Report, error) {
			return SendFile(ctx, c, &failingReader{randomData(2000)}, 5000, DefaultOptions())
		}, nil},
	}

	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			hub := transport.NewHub()
			sendTransport, _ := transport.NewMemoryConn(hub, "sender")
			recvTransport, _ := transport.NewMemoryConn(hub, "receiver")
			defer recvTransport.Close()

			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()

			// The aborted sender never sends a FIN, so this receiver waits until cancelled.
			go func() {
				if c, err := conn.Accept(ctx, recvTransport, testConfig()); err == nil {
					_, _ = Receive(ctx, c, &bytes.Buffer{})
				}
			}()

			c, err := conn.Dial(ctx, sendTransport, recvTransport.LocalAddr(), testConfig())
			if err != nil {
				t.Fatal(err)
			}

			_, err = test.send(ctx, c)
			if err == nil {
				t.Fatal("session did not fail")
			} else if test.err != nil && !errors.Is(err, test.err) {
				t.Fatalf("expected %v, got %v", test.err, err)
			}

			if c.State() != conn.Closed {
				t.Fatalf("connection is %v", c.State())
			}
		})
	}
}
