// Copyright 2020 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package report

import (
	"math"

	"github.com/aclements/go-moremath/stats"
)

// A LinearTranslation maps x linearly through two anchor points.
type LinearTranslation struct {
	In1, Out1, In2, Out2 float64
}

// Translate returns the image of x.
func (l LinearTranslation) Translate(x float64) float64 {
	return l.Out1 + (x-l.In1)*(l.Out2-l.Out1)/(l.In2-l.In1)
}

// ScoreTranslation maps the mean log median to a score: a median of 1
// unit scores 100 and a median of 1e9 units scores 10.
var ScoreTranslation = LinearTranslation{In1: math.Log(1e9), Out1: 10, In2: math.Log(1), Out2: 100}

func score(rows []*Row) float64 {
	logs := make([]float64, len(rows))
	for i, r := range rows {
		if !(r.Median > 0) {
			return math.NaN()
		}
		logs[i] = math.Log(r.Median)
	}
	return ScoreTranslation.Translate(stats.Mean(logs))
}
