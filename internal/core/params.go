package core

import (
	"strconv"
	"strings"
)

func ParseAlpha(value string) (float64, error) {
	alpha, err := strconv.ParseFloat(strings.TrimSpace(value), 64)
	if err != nil {
		return 0, Errorf(ParseError, "Invalid alpha value: '%s'. Must be convertible to float.", value)
	}
	return alpha, nil
}

func ParseClusters(value string) (int, error) {
	clusters, err := strconv.Atoi(strings.TrimSpace(value))
	if err != nil {
		return 0, Errorf(ParseError, "Invalid clusters value: '%s'. Must be convertible to an integer.", value)
	}
	return clusters, nil
}

type PredictParams struct {
	Alpha       float64
	NumClusters int
}

func ParsePredictParams(alpha, clusters string) (PredictParams, error) {
	a, err := ParseAlpha(alpha)
	if err != nil {
		return PredictParams{}, err
	}
	c, err := ParseClusters(clusters)
	if err != nil {
		return PredictParams{}, err
	}
	return PredictParams{Alpha: a, NumClusters: c}, nil
}
