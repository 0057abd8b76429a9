// Copyright (c) 2015-2021, NVIDIA CORPORATION.
// SPDX-License-Identifier: Apache-2.0

package report

import (
	"fmt"
	"io/ioutil"

	"gopkg.in/yaml.v3"
)

// WriteYAML writes runReport to path, replacing any existing file
func WriteYAML(runReport *RunReport, path string) (err error) {
	var (
		data []byte
	)

	data, err = yaml.Marshal(runReport)
	if nil != err {
		err = fmt.Errorf("marshal run report: %v", err)
		return
	}

	err = ioutil.WriteFile(path, data, 0644)
	if nil != err {
		err = fmt.Errorf("write run report %s: %v", path, err)
		return
	}

	return
}

// ReadYAML loads a RunReport previously written by WriteYAML
func ReadYAML(path string) (runReport *RunReport, err error) {
	var (
		data []byte
	)

	data, err = ioutil.ReadFile(path)
	if nil != err {
		return
	}

	runReport = &RunReport{}

	err = yaml.Unmarshal(data, runReport)
	if nil != err {
		err = fmt.Errorf("parse run report %s: %v", path, err)
		runReport = nil
		return
	}

	return
}
