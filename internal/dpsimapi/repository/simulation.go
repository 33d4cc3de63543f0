package repository

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/go-redis/redis"
	jsoniter "github.com/json-iterator/go"
	"github.com/pkg/errors"

	"github.com/sogno-platform/dpsim-api/internal/common/dpsimerrors"
	"github.com/sogno-platform/dpsim-api/pkg/api"
)

const (
	simulationObjectPrefix = "Simulation:"
	SimulationIdCounterKey = "Simulation:IdCounter"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

type SimulationRepository interface {
	GetNewSimulationId() (uint64, error)
	WriteSimulation(simulation *api.Simulation) error
	ReadSimulation(id uint64) (*api.Simulation, error)
	GetSimulations(offset uint64, limit int) ([]*api.Simulation, error)
	ReadU64(key string) (uint64, error)
	WriteU64(key string, value uint64) error
}

type RedisSimulationRepository struct {
	db *redis.Client
}

func NewRedisSimulationRepository(db *redis.Client) *RedisSimulationRepository {
	return &RedisSimulationRepository{db: db}
}

func simulationKey(id uint64) string {
	return simulationObjectPrefix + strconv.FormatUint(id, 10)
}

// getConnection returns the pooled client. Each command checks a connection out of
// the pool and returns it once the reply has been read, on success and on error.
func (r *RedisSimulationRepository) getConnection() redis.Cmdable {
	return r.db
}

// GetNewSimulationId atomically increments the id counter and returns the new value.
// Ids start at 1 and are never handed out twice, even if the submission that
// requested the id fails later on.
func (r *RedisSimulationRepository) GetNewSimulationId() (uint64, error) {
	conn := r.getConnection()

	id, err := conn.Incr(SimulationIdCounterKey).Result()
	if err != nil {
		if isNotAnInteger(err) {
			value, _ := conn.Get(SimulationIdCounterKey).Result()
			return 0, errors.WithStack(&dpsimerrors.ErrCounterCorrupt{Key: SimulationIdCounterKey, Value: value})
		}
		return 0, storeUnavailable("INCR "+SimulationIdCounterKey, err)
	}
	if id <= 0 {
		return 0, errors.WithStack(&dpsimerrors.ErrCounterCorrupt{Key: SimulationIdCounterKey, Value: strconv.FormatInt(id, 10)})
	}
	return uint64(id), nil
}

// WriteSimulation stores simulation under its id, replacing any previous version.
func (r *RedisSimulationRepository) WriteSimulation(simulation *api.Simulation) error {
	data, err := json.Marshal(simulation)
	if err != nil {
		return errors.WithStack(&dpsimerrors.ErrSerialization{Type: "simulation", Err: err})
	}

	conn := r.getConnection()

	key := simulationKey(simulation.SimulationId)
	if err := conn.Set(key, data, 0).Err(); err != nil {
		return storeUnavailable("SET "+key, err)
	}
	return nil
}

// ReadSimulation returns *dpsimerrors.ErrNotFound if no simulation with that id has been written.
func (r *RedisSimulationRepository) ReadSimulation(id uint64) (*api.Simulation, error) {
	conn := r.getConnection()

	key := simulationKey(id)
	data, err := conn.Get(key).Bytes()
	if err == redis.Nil {
		return nil, errors.WithStack(&dpsimerrors.ErrNotFound{Type: "simulation", Value: strconv.FormatUint(id, 10)})
	} else if err != nil {
		return nil, storeUnavailable("GET "+key, err)
	}
	return unmarshalSimulation(data)
}

// GetSimulations returns up to limit simulations with ids greater than offset, in id order.
// Ids that were allocated but never written are skipped.
func (r *RedisSimulationRepository) GetSimulations(offset uint64, limit int) ([]*api.Simulation, error) {
	lastId, err := r.ReadU64(SimulationIdCounterKey)
	if err != nil {
		var notFound *dpsimerrors.ErrNotFound
		if errors.As(err, &notFound) {
			return []*api.Simulation{}, nil
		}
		return nil, err
	}
	if limit <= 0 || offset >= lastId {
		return []*api.Simulation{}, nil
	}

	end := lastId
	if offset+uint64(limit) < end {
		end = offset + uint64(limit)
	}
	keys := make([]string, 0, end-offset)
	for id := offset + 1; id <= end; id++ {
		keys = append(keys, simulationKey(id))
	}

	conn := r.getConnection()

	values, err := conn.MGet(keys...).Result()
	if err != nil {
		return nil, storeUnavailable(fmt.Sprintf("MGET %s..%s", keys[0], keys[len(keys)-1]), err)
	}

	simulations := make([]*api.Simulation, 0, len(values))
	for _, value := range values {
		s, ok := value.(string)
		if !ok {
			continue
		}
		simulation, err := unmarshalSimulation([]byte(s))
		if err != nil {
			return nil, err
		}
		simulations = append(simulations, simulation)
	}
	return simulations, nil
}

// ReadU64 returns *dpsimerrors.ErrNotFound if key doesn't exist and
// *dpsimerrors.ErrCounterCorrupt if it doesn't hold an unsigned integer.
func (r *RedisSimulationRepository) ReadU64(key string) (uint64, error) {
	conn := r.getConnection()

	value, err := conn.Get(key).Result()
	if err == redis.Nil {
		return 0, errors.WithStack(&dpsimerrors.ErrNotFound{Type: "counter", Value: key})
	} else if err != nil {
		return 0, storeUnavailable("GET "+key, err)
	}

	parsed, err := strconv.ParseUint(value, 10, 64)
	if err != nil {
		return 0, errors.WithStack(&dpsimerrors.ErrCounterCorrupt{Key: key, Value: value})
	}
	return parsed, nil
}

func (r *RedisSimulationRepository) WriteU64(key string, value uint64) error {
	conn := r.getConnection()

	if err := conn.Set(key, strconv.FormatUint(value, 10), 0).Err(); err != nil {
		return storeUnavailable("SET "+key, err)
	}
	return nil
}

func unmarshalSimulation(data []byte) (*api.Simulation, error) {
	simulation := &api.Simulation{}
	if err := json.Unmarshal(data, simulation); err != nil {
		return nil, errors.WithStack(&dpsimerrors.ErrSerialization{Type: "simulation", Err: err})
	}
	return simulation, nil
}

func storeUnavailable(op string, err error) error {
	return errors.WithStack(&dpsimerrors.ErrStoreUnavailable{Op: op, Err: err})
}

// Redis reports INCR on a non-numeric value as "ERR value is not an integer or out of range".
func isNotAnInteger(err error) bool {
	return strings.Contains(err.Error(), "not an integer")
}
