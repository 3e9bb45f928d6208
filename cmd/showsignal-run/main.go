package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"os/exec"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/luminet/showsignal"
	"github.com/luminet/showsignal/artnet"
	"github.com/luminet/showsignal/audio"
	"github.com/luminet/showsignal/capture"
	"github.com/luminet/showsignal/dispatch"
	"github.com/luminet/showsignal/mtc"
	"github.com/luminet/showsignal/osc"
	"github.com/luminet/showsignal/transport"
	"github.com/luminet/showsignal/version"
)

var (
	syncFlag    = flag.String("sync", "", "override the project sync source: internal, mtc or ltc")
	midiInput   = flag.String("midi-input", "", "connect MTC input to matching device name prefix")
	midiOutput  = flag.String("midi-output", "", "connect MIDI output to matching device name prefix")
	mtcMaster   = flag.Bool("mtc-master", false, "transmit MIDI Time Code on the MIDI output")
	captureCmd  = flag.String("capture-cmd", "", "command to spawn as the capture worker")
	audioDevice = flag.String("audio-device", "", "audio output device hint")
	sampleRate  = flag.Int("sample-rate", 48000, "audio engine sample rate")
	bufferSize  = flag.Int("buffer", 480, "audio block size in frames")
	noAudio     = flag.Bool("no-audio", false, "run without the audio engine")
	versionFlag = flag.Bool("v", false, "print version")
)

func main() {
	flag.Parse()
	if *versionFlag {
		fmt.Println(version.VersionOrHash)
		os.Exit(0)
	}
	if flag.NArg() != 1 {
		fmt.Fprintf(os.Stderr, "usage: %s [flags] project.yml\n", os.Args[0])
		flag.PrintDefaults()
		os.Exit(1)
	}
	if err := run(flag.Arg(0)); err != nil {
		log.Fatal(err)
	}
}

func run(path string) error {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("opening project: %w", err)
	}
	project, err := showsignal.ReadProject(f)
	f.Close()
	if err != nil {
		return fmt.Errorf("reading project: %w", err)
	}
	sync := project.Sync
	if *syncFlag != "" {
		if sync, err = showsignal.ParseSyncSource(*syncFlag); err != nil {
			return err
		}
	}

	clock := transport.NewClock(project.Length)
	clock.SetSource(sync)

	mtcIn := transport.NewMTCInput(clock)
	defer mtcIn.Shutdown()
	if sync == showsignal.SyncMTC {
		if err := mtcIn.Open(*midiInput); err != nil {
			log.Printf("MTC input unavailable: %v", err)
		}
	}

	midiOut := dispatch.NewMIDIOut()
	defer midiOut.Shutdown()
	if *midiOutput != "" {
		if err := midiOut.Open(*midiOutput); err != nil {
			log.Printf("MIDI output unavailable: %v", err)
		}
	}

	oscSender, err := osc.NewSender()
	if err != nil {
		return fmt.Errorf("opening control socket: %w", err)
	}
	defer oscSender.Close()
	dmxSender, err := artnet.NewSender()
	if err != nil {
		return fmt.Errorf("opening lighting socket: %w", err)
	}
	defer dmxSender.Close()

	var engine *audio.Engine
	if !*noAudio {
		engine = audio.NewEngine()
		defer engine.Close()
		err := engine.Configure(audio.Config{
			Device:       *audioDevice,
			SampleRate:   *sampleRate,
			BufferFrames: *bufferSize,
		})
		if err != nil {
			log.Printf("audio unavailable: %v", err)
		}
		if err := engine.SetTracks(project.Tracks); err != nil {
			log.Printf("some audio tracks failed to load: %v", err)
		}
	}

	broker := dispatch.NewBroker()
	dispatcher := dispatch.NewDispatcher(broker, clock, dispatch.Config{
		FrameInterval:  project.FrameInterval(),
		ControlSender:  oscSender,
		LightingSender: dmxSender,
		MIDISend:       midiOut.Send,
		MTCMaster:      *mtcMaster && midiOut.Available(),
		MTCRate:        mtc.RateForFPS(project.FPS),
	})
	dispatcher.Start()
	defer dispatcher.Stop()
	dispatcher.SetTracks(project.Tracks)

	go drainAlerts(broker)

	if *captureCmd != "" && project.CapturePort > 0 {
		client := capture.NewClient(spawnWorker(*captureCmd))
		defer client.Close()
		if err := client.StartListener(project.CapturePort); err != nil {
			log.Printf("capture listener unavailable: %v", err)
		}
		defer client.StopListener()
		poller := capture.NewPoller(client, 50*time.Millisecond, 256, func(item json.RawMessage) {
			log.Printf("capture: %s", item)
		})
		poller.Start()
		defer poller.Stop()
	}

	if sync == showsignal.SyncInternal {
		clock.Play(0)
		if engine != nil {
			engine.Play(0)
		}
	} else {
		log.Printf("waiting for %s timecode", sync)
	}

	interrupt := make(chan os.Signal, 1)
	signal.Notify(interrupt, os.Interrupt, syscall.SIGTERM)
	ticker := time.NewTicker(10 * time.Millisecond)
	defer ticker.Stop()
	wasRunning := clock.IsRunning()
	for {
		select {
		case <-interrupt:
			log.Print("interrupted, shutting down")
			return nil
		case <-ticker.C:
			clock.Advance()
			running := clock.IsRunning()
			if engine != nil && running != wasRunning {
				if running {
					if t, ok := clock.CurrentTime(); ok {
						engine.Play(t)
					}
				} else {
					engine.Pause()
				}
			}
			if sync == showsignal.SyncInternal && wasRunning && !running {
				log.Print("reached end of project")
				return nil
			}
			wasRunning = running
		}
	}
}

func drainAlerts(broker *dispatch.Broker) {
	for alert := range broker.ToHost {
		log.Printf("%s: %s", alert.Name, alert.Message)
	}
}

// workerPipe joins a child process's stdin and stdout into the duplex
// connection the capture client expects.
type workerPipe struct {
	in  io.WriteCloser
	out io.ReadCloser
}

func (p *workerPipe) Read(b []byte) (int, error)  { return p.out.Read(b) }
func (p *workerPipe) Write(b []byte) (int, error) { return p.in.Write(b) }

func (p *workerPipe) Close() error {
	p.in.Close()
	return p.out.Close()
}

func spawnWorker(command string) capture.SpawnFunc {
	return func() (io.ReadWriteCloser, error) {
		parts := strings.Fields(command)
		cmd := exec.Command(parts[0], parts[1:]...)
		cmd.Stderr = os.Stderr
		in, err := cmd.StdinPipe()
		if err != nil {
			return nil, err
		}
		out, err := cmd.StdoutPipe()
		if err != nil {
			return nil, err
		}
		if err := cmd.Start(); err != nil {
			return nil, fmt.Errorf("starting capture worker: %w", err)
		}
		go cmd.Wait()
		return &workerPipe{in: in, out: out}, nil
	}
}
