package queue

import (
	"bytes"
	"context"
	"errors"
	"io"
	"strings"
	"sync"
	"time"

	"github.com/OFFIS-RIT/kgalign/pkg/embedding"
	"github.com/OFFIS-RIT/kgalign/pkg/leaselock"
	"github.com/OFFIS-RIT/kgalign/pkg/mapping"
	"github.com/OFFIS-RIT/kgalign/pkg/store"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/rabbitmq/amqp091-go"
)

type memoryObjects struct {
	mu      sync.Mutex
	objects map[string][]byte
	puts    int
	failPut int
}

func (m *memoryObjects) GetObject(ctx context.Context, in *s3.GetObjectInput, _ ...func(*s3.Options)) (*s3.GetObjectOutput, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	data, ok := m.objects[aws.ToString(in.Key)]
	if !ok {
		return nil, errors.New("NoSuchKey")
	}
	return &s3.GetObjectOutput{Body: io.NopCloser(bytes.NewReader(data))}, nil
}

func (m *memoryObjects) PutObject(ctx context.Context, in *s3.PutObjectInput, _ ...func(*s3.Options)) (*s3.PutObjectOutput, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.puts++
	if m.puts <= m.failPut {
		return nil, errors.New("slow down")
	}
	data, err := io.ReadAll(in.Body)
	if err != nil {
		return nil, err
	}
	m.objects[aws.ToString(in.Key)] = data
	return &s3.PutObjectOutput{}, nil
}

func (m *memoryObjects) ListObjectsV2(ctx context.Context, in *s3.ListObjectsV2Input, _ ...func(*s3.Options)) (*s3.ListObjectsV2Output, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := &s3.ListObjectsV2Output{IsTruncated: aws.Bool(false)}
	for k := range m.objects {
		if strings.HasPrefix(k, aws.ToString(in.Prefix)) {
			out.Contents = append(out.Contents, types.Object{Key: aws.String(k)})
		}
	}
	return out, nil
}

type memoryRuns struct {
	mu       sync.Mutex
	runs     map[string]store.Run
	mappings map[string]mapping.Mapping
	blankA   map[string]embedding.Table
	blankB   map[string]embedding.Table
	states   []store.RunState
}

func newMemoryRuns(runs ...store.Run) *memoryRuns {
	m := &memoryRuns{
		runs:     make(map[string]store.Run),
		mappings: make(map[string]mapping.Mapping),
		blankA:   make(map[string]embedding.Table),
		blankB:   make(map[string]embedding.Table),
	}
	for _, r := range runs {
		m.runs[r.ID] = r
	}
	return m
}

func (m *memoryRuns) CreateRun(ctx context.Context, run store.Run) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.runs[run.ID] = run
	return nil
}

func (m *memoryRuns) GetRun(ctx context.Context, id string) (store.Run, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.runs[id]
	if !ok {
		return store.Run{}, store.ErrRunNotFound
	}
	return r, nil
}

func (m *memoryRuns) UpdateRunState(ctx context.Context, id string, state store.RunState, message string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.runs[id]
	if !ok {
		return store.ErrRunNotFound
	}
	r.State = state
	r.Error = message
	m.runs[id] = r
	m.states = append(m.states, state)
	return nil
}

func (m *memoryRuns) CompleteRun(ctx context.Context, id string, mappingKey string, report mapping.Report) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	r := m.runs[id]
	r.State = store.RunCompleted
	r.MappingKey = mappingKey
	r.Pairs = report.Pairs
	r.Correct = report.Correct
	r.URIDiffs = report.URIDiffs
	r.Accuracy = report.Accuracy
	m.runs[id] = r
	m.states = append(m.states, store.RunCompleted)
	return nil
}

func (m *memoryRuns) SaveBlankEmbeddings(ctx context.Context, runID string, a, b embedding.Table) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.blankA[runID] = a
	m.blankB[runID] = b
	return nil
}

func (m *memoryRuns) LoadBlankTables(ctx context.Context, runID string) (embedding.Table, embedding.Table, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.blankA[runID], m.blankB[runID], nil
}

func (m *memoryRuns) SaveMapping(ctx context.Context, runID string, mp mapping.Mapping) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.mappings[runID] = mp
	return nil
}

func (m *memoryRuns) GetMapping(ctx context.Context, runID string) (mapping.Mapping, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.mappings[runID], nil
}

type directLocker struct {
	keys []string
	ttls []time.Duration
}

func (l *directLocker) WithLease(ctx context.Context, key string, opts leaselock.Options, fn func(ctx context.Context) error) error {
	l.keys = append(l.keys, key)
	l.ttls = append(l.ttls, opts.TTL)
	return fn(ctx)
}

type published struct {
	exchange string
	key      string
	msg      amqp091.Publishing
}

type recordingChannel struct {
	mu       sync.Mutex
	declared []string
	sent     []published
	failPub  bool
}

func (c *recordingChannel) QueueDeclare(name string, durable, autoDelete, exclusive, noWait bool, args amqp091.Table) (amqp091.Queue, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.declared = append(c.declared, name)
	return amqp091.Queue{Name: name}, nil
}

func (c *recordingChannel) ExchangeDeclare(name, kind string, durable, autoDelete, internal, noWait bool, args amqp091.Table) error {
	return nil
}

func (c *recordingChannel) Publish(exchange, key string, mandatory, immediate bool, msg amqp091.Publishing) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.failPub {
		return errors.New("channel closed")
	}
	c.sent = append(c.sent, published{exchange: exchange, key: key, msg: msg})
	return nil
}

type recordingAck struct {
	acked   int
	nacked  int
	requeue bool
}

func (a *recordingAck) Ack(tag uint64, multiple bool) error {
	a.acked++
	return nil
}

func (a *recordingAck) Nack(tag uint64, multiple, requeue bool) error {
	a.nacked++
	a.requeue = requeue
	return nil
}

func (a *recordingAck) Reject(tag uint64, requeue bool) error {
	return nil
}
