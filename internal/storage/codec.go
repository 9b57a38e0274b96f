package storage

import (
	"encoding/json"
	"errors"

	"glucosim/internal/model"
)

const (
	CurrentSchemaVersion = 1
	CurrentCodecVersion  = 1
)

var ErrVersionMismatch = errors.New("record version mismatch")

// CurrentVersion is the record version written by this build.
func CurrentVersion() model.VersionedRecord {
	return model.VersionedRecord{SchemaVersion: CurrentSchemaVersion, CodecVersion: CurrentCodecVersion}
}

func EncodeRun(r model.RunRecord) ([]byte, error) {
	return json.Marshal(r)
}

func DecodeRun(data []byte) (model.RunRecord, error) {
	var run model.RunRecord
	if err := json.Unmarshal(data, &run); err != nil {
		return model.RunRecord{}, err
	}
	if err := checkVersion(run.VersionedRecord); err != nil {
		return model.RunRecord{}, err
	}
	return run, nil
}

func EncodeEpisode(e model.EpisodeRecord) ([]byte, error) {
	return json.Marshal(e)
}

func DecodeEpisode(data []byte) (model.EpisodeRecord, error) {
	var episode model.EpisodeRecord
	if err := json.Unmarshal(data, &episode); err != nil {
		return model.EpisodeRecord{}, err
	}
	if err := checkVersion(episode.VersionedRecord); err != nil {
		return model.EpisodeRecord{}, err
	}
	return episode, nil
}

func EncodeTransitions(transitions []model.TransitionRecord) ([]byte, error) {
	return json.Marshal(transitions)
}

func DecodeTransitions(data []byte) ([]model.TransitionRecord, error) {
	var transitions []model.TransitionRecord
	if err := json.Unmarshal(data, &transitions); err != nil {
		return nil, err
	}
	return transitions, nil
}

func checkVersion(v model.VersionedRecord) error {
	if v.SchemaVersion != CurrentSchemaVersion || v.CodecVersion != CurrentCodecVersion {
		return ErrVersionMismatch
	}
	return nil
}
