package repository

import (
	"strconv"

	"github.com/go-redis/redis"
	"github.com/pkg/errors"

	"github.com/sogno-platform/dpsim-api/internal/common/dpsimerrors"
)

const loadProfileSuffix = ":LoadProfile"

// ProfileRepository stores the profile data set of a simulation as one hash,
// field name = profile name, value = raw file content.
type ProfileRepository interface {
	WriteProfileData(simulationId uint64, data map[string][]byte) (string, error)
	ReadProfileData(simulationId uint64) (map[string][]byte, error)
	DeleteProfileData(simulationId uint64) error
}

type RedisProfileRepository struct {
	db *redis.Client
}

func NewRedisProfileRepository(db *redis.Client) *RedisProfileRepository {
	return &RedisProfileRepository{db: db}
}

func ProfileDataKey(simulationId uint64) string {
	return simulationObjectPrefix + strconv.FormatUint(simulationId, 10) + loadProfileSuffix
}

// WriteProfileData replaces the profile data set of a simulation and returns the key it was stored under.
// The key is what the execution layer receives as a handle to the data.
func (r *RedisProfileRepository) WriteProfileData(simulationId uint64, data map[string][]byte) (string, error) {
	key := ProfileDataKey(simulationId)
	if len(data) == 0 {
		return "", errors.WithStack(&dpsimerrors.ErrInvalidArgument{
			Name:    "load_profile_data",
			Value:   key,
			Message: "profile data set is empty",
		})
	}

	fields := make(map[string]interface{}, len(data))
	for name, content := range data {
		fields[name] = content
	}

	_, err := r.db.TxPipelined(func(pipe redis.Pipeliner) error {
		pipe.Del(key)
		pipe.HMSet(key, fields)
		return nil
	})
	if err != nil {
		return "", storeUnavailable("HMSET "+key, err)
	}
	return key, nil
}

func (r *RedisProfileRepository) ReadProfileData(simulationId uint64) (map[string][]byte, error) {
	key := ProfileDataKey(simulationId)
	result, err := r.db.HGetAll(key).Result()
	if err != nil {
		return nil, storeUnavailable("HGETALL "+key, err)
	}
	if len(result) == 0 {
		return nil, errors.WithStack(&dpsimerrors.ErrNotFound{Type: "load profile", Value: key})
	}

	data := make(map[string][]byte, len(result))
	for name, content := range result {
		data[name] = []byte(content)
	}
	return data, nil
}

// DeleteProfileData removes the profile data set of a simulation. Deleting a set that
// doesn't exist is not an error.
func (r *RedisProfileRepository) DeleteProfileData(simulationId uint64) error {
	key := ProfileDataKey(simulationId)
	if err := r.db.Del(key).Err(); err != nil {
		return storeUnavailable("DEL "+key, err)
	}
	return nil
}
