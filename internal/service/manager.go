package service

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"image"
	"image/jpeg"
	"sync"
	"time"

	"beveragedetect/internal/annotate"
	"beveragedetect/internal/config"
	"beveragedetect/internal/detection"
	"beveragedetect/internal/dto"
	"beveragedetect/internal/logger"

	"github.com/google/uuid"
)

var (
	ErrQueueFull      = errors.New("processing queue full")
	ErrManagerStopped = errors.New("manager stopped")
)

const annotatedQuality = 90

// Detector runs the pretrained model on a single image. Implementations are
// not required to be safe for concurrent use.
type Detector interface {
	Detect(img image.Image, confThreshold float32) (detection.Result, error)
	Close() error
}

// RunStore receives finished runs for persistence.
type RunStore interface {
	AddRun(run dto.BufferedRun)
}

// Broadcaster pushes a message to live viewers.
type Broadcaster interface {
	Broadcast(message []byte)
}

// Upload is a decoded user image together with its original bytes.
type Upload struct {
	Filename  string
	Extension string
	Data      []byte
	Image     image.Image
}

// Outcome is everything one detection run produced.
type Outcome struct {
	RunID         string
	Confidence    float64
	Result        detection.Result
	Table         detection.Table
	Annotated     *image.RGBA
	AnnotatedJPEG []byte
	Elapsed       time.Duration
}

type processingTask struct {
	ctx        context.Context
	upload     Upload
	confidence float64
	enqueued   time.Time
	reply      chan taskReply
}

type taskReply struct {
	outcome *Outcome
	err     error
}

// Manager owns the detector pool. Each worker has its own detector, so a
// network is only ever used by one goroutine.
type Manager struct {
	detectors   []Detector
	annotator   *annotate.Annotator
	store       RunStore
	broadcaster Broadcaster
	logger      *logger.Logger

	processingQueue chan processingTask
	numWorkers      int

	stopOnce sync.Once
	stopped  chan struct{}
	wg       sync.WaitGroup
}

// NewManager starts one worker per detector. store and broadcaster may be nil.
func NewManager(detectors []Detector, annotator *annotate.Annotator, store RunStore, broadcaster Broadcaster, config *config.Config, logger *logger.Logger) *Manager {
	queueSize := config.QueueSize
	if queueSize <= 0 {
		queueSize = 1
	}

	manager := &Manager{
		detectors:       detectors,
		annotator:       annotator,
		store:           store,
		broadcaster:     broadcaster,
		logger:          logger,
		numWorkers:      len(detectors),
		processingQueue: make(chan processingTask, queueSize),
		stopped:         make(chan struct{}),
	}

	for i := 0; i < manager.numWorkers; i++ {
		manager.wg.Add(1)
		go manager.processingWorker(i)
	}

	manager.logger.Info("Manager started with %d worker(s), queue size %d", manager.numWorkers, queueSize)
	return manager
}

// Detect queues the upload and waits for the worker's outcome. It fails fast
// with ErrQueueFull when every slot is taken.
func (m *Manager) Detect(ctx context.Context, upload Upload, confidence float64) (*Outcome, error) {
	task := processingTask{
		ctx:        ctx,
		upload:     upload,
		confidence: confidence,
		enqueued:   time.Now(),
		reply:      make(chan taskReply, 1),
	}

	select {
	case <-m.stopped:
		return nil, ErrManagerStopped
	default:
	}

	select {
	case m.processingQueue <- task:
	default:
		m.logger.Warning("Processing queue full, rejecting %s", upload.Filename)
		return nil, ErrQueueFull
	}

	select {
	case reply := <-task.reply:
		return reply.outcome, reply.err
	case <-m.stopped:
		return nil, ErrManagerStopped
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// processingWorker serves tasks with the detector at index workerID.
func (m *Manager) processingWorker(workerID int) {
	defer m.wg.Done()

	m.logger.Info("Processing worker %d started", workerID)

	for {
		select {
		case <-m.stopped:
			m.logger.Info("Processing worker %d stopped", workerID)
			return
		case task := <-m.processingQueue:
			if task.ctx.Err() != nil {
				task.reply <- taskReply{err: task.ctx.Err()}
				continue
			}
			outcome, err := m.process(task, workerID)
			task.reply <- taskReply{outcome: outcome, err: err}
		}
	}
}

func (m *Manager) process(task processingTask, workerID int) (*Outcome, error) {
	result, err := m.detectors[workerID].Detect(task.upload.Image, float32(task.confidence))
	if err != nil {
		m.logger.Error("Object detection failed on worker %d: %v", workerID, err)
		return nil, err
	}
	result.SortByConfidence()

	annotated := m.annotator.Draw(task.upload.Image, result)

	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, annotated, &jpeg.Options{Quality: annotatedQuality}); err != nil {
		return nil, fmt.Errorf("failed to encode annotated image: %w", err)
	}

	outcome := &Outcome{
		RunID:         uuid.NewString(),
		Confidence:    task.confidence,
		Result:        result,
		Table:         detection.NewTable(result),
		Annotated:     annotated,
		AnnotatedJPEG: buf.Bytes(),
		Elapsed:       time.Since(task.enqueued),
	}

	m.logger.Info("Run %s: %d item(s) in %s at confidence %.2f", outcome.RunID, result.Count(), outcome.Elapsed, task.confidence)

	if m.store != nil {
		m.store.AddRun(dto.BufferedRun{
			UUID:          outcome.RunID,
			Filename:      task.upload.Filename,
			Extension:     task.upload.Extension,
			Timestamp:     time.Now(),
			Confidence:    task.confidence,
			Result:        result,
			Original:      task.upload.Data,
			AnnotatedJPEG: outcome.AnnotatedJPEG,
		})
	}

	m.SendToViewers(outcome)
	return outcome, nil
}

// SendToViewers broadcasts a short summary of the run to live viewers.
func (m *Manager) SendToViewers(outcome *Outcome) {
	if m.broadcaster == nil {
		return
	}

	event := dto.LiveEvent{
		RunID:   outcome.RunID,
		Count:   outcome.Table.Count(),
		Classes: outcome.Result.Labels(),
		Summary: outcome.Table.Summary(),
	}
	message, err := json.Marshal(event)
	if err != nil {
		m.logger.Error("Failed to encode live event: %v", err)
		return
	}
	m.broadcaster.Broadcast(message)
}

// Workers is the number of detectors in the pool.
func (m *Manager) Workers() int {
	return m.numWorkers
}

// Stop halts all workers and closes their detectors. Queued tasks that were
// not picked up are answered with ErrManagerStopped.
func (m *Manager) Stop() {
	m.stopOnce.Do(func() {
		close(m.stopped)
		m.wg.Wait()

	drain:
		for {
			select {
			case task := <-m.processingQueue:
				task.reply <- taskReply{err: ErrManagerStopped}
			default:
				break drain
			}
		}

		for _, d := range m.detectors {
			if err := d.Close(); err != nil {
				m.logger.Error("Failed to close detector: %v", err)
			}
		}
		m.logger.Info("All processing workers stopped")
	})
}
