// Copyright (c) 2015-2021, NVIDIA CORPORATION.
// SPDX-License-Identifier: Apache-2.0

// Package conf provides a simple sectioned configuration map.
//
// A ConfMap is accessed via confMap[section_name][option_name][option_value_index]
// or via the Fetch* methods below. It may be loaded from an .INI/.conf formatted
// file and/or from strings of the form <section_name>.<option_name>=<values>,
// the latter typically coming from command-line overrides.
//
// Option values are comma separated. Whitespace inside a value is preserved so
// that file system paths containing spaces may be supplied.
//
package conf

import (
	"fmt"
	"io/ioutil"
	"os"
	"regexp"
	"sort"
	"strconv"
	"strings"
	"time"
)

type ConfMapOption []string
type ConfMapSection map[string]ConfMapOption
type ConfMap map[string]ConfMapSection

var nameRE = regexp.MustCompile("\\A[0-9A-Za-z_\\-]+\\z")
var sectionHeaderLineRE = regexp.MustCompile("\\A\\[[ \t]*([0-9A-Za-z_\\-]+)[ \t]*\\]\\z")

// MakeConfMap returns an empty ConfMap
func MakeConfMap() (confMap ConfMap) {
	confMap = make(ConfMap)
	return
}

// MakeConfMapFromFile returns a ConfMap holding the options found in confFilePath
func MakeConfMapFromFile(confFilePath string) (confMap ConfMap, err error) {
	confMap = MakeConfMap()
	err = confMap.UpdateFromFile(confFilePath)
	return
}

// MakeConfMapFromStrings returns a ConfMap holding the <section>.<option>=<values> assignments in confStrings
func MakeConfMapFromStrings(confStrings []string) (confMap ConfMap, err error) {
	confMap = MakeConfMap()
	err = confMap.UpdateFromStrings(confStrings)
	if nil != err {
		err = fmt.Errorf("Error building confMap from conf strings: %v", err)
		return
	}

	err = nil
	return
}

func splitOptionValues(optionValues string) (optionValuesSplit ConfMapOption) {
	optionValues = strings.Trim(optionValues, " \t")

	if 0 == len(optionValues) {
		optionValuesSplit = ConfMapOption{}
		return
	}

	optionValuesSplit = ConfMapOption{}

	for _, optionValue := range strings.Split(optionValues, ",") {
		optionValue = strings.Trim(optionValue, " \t")
		if 0 < len(optionValue) {
			optionValuesSplit = append(optionValuesSplit, optionValue)
		}
	}

	return
}

func (confMap ConfMap) setOption(sectionName string, optionName string, optionValues ConfMapOption) {
	section, found := confMap[sectionName]
	if !found {
		section = make(ConfMapSection)
		confMap[sectionName] = section
	}

	section[optionName] = optionValues
}

// UpdateFromString applies one <section>.<option> assignment, replacing any
// values the option already had
//
// A confString looks like:
//
//   <section_name>.<option_name>=
//   <section_name>.<option_name>:<value>
//   <section_name>.<option_name>=<value>,<value>
//
func (confMap ConfMap) UpdateFromString(confString string) (err error) {
	var (
		assignmentIndex int
		dotIndex        int
		optionName      string
		sectionName     string
	)

	confStringTrimmed := strings.Trim(confString, " \t")

	if 0 == len(confStringTrimmed) {
		err = fmt.Errorf("trimmed confString: \"%v\" was found to be empty", confString)
		return
	}

	assignmentIndex = strings.IndexAny(confStringTrimmed, "=:")
	if 0 > assignmentIndex {
		err = fmt.Errorf("malformed confString: \"%v\" (missing '=' or ':')", confString)
		return
	}

	dotIndex = strings.Index(confStringTrimmed[:assignmentIndex], ".")
	if 0 > dotIndex {
		err = fmt.Errorf("malformed confString: \"%v\" (missing '.')", confString)
		return
	}

	sectionName = strings.Trim(confStringTrimmed[:dotIndex], " \t")
	optionName = strings.Trim(confStringTrimmed[dotIndex+1:assignmentIndex], " \t")

	if !nameRE.MatchString(sectionName) || !nameRE.MatchString(optionName) {
		err = fmt.Errorf("malformed confString: \"%v\"", confString)
		return
	}

	confMap.setOption(sectionName, optionName, splitOptionValues(confStringTrimmed[assignmentIndex+1:]))

	err = nil
	return
}

// UpdateFromStrings applies each assignment in order, stopping at the first malformed one
func (confMap ConfMap) UpdateFromStrings(confStrings []string) (err error) {
	for _, confString := range confStrings {
		err = confMap.UpdateFromString(confString)
		if nil != err {
			return
		}
	}
	err = nil
	return
}

// UpdateFromFile applies every assignment found in the .conf file at confFilePath
//
// For example:
//
//   # whole-line comments start with '#' or ';'
//   [Traveler]
//   PrimaryPath:   /mnt/nvme0
//   SecondaryPath:
//   Workloads =    internal, sequential
//
// A "-" confFilePath reads from os.Stdin.
//
func (confMap ConfMap) UpdateFromFile(confFilePath string) (err error) {
	var (
		assignmentIndex    int
		confFileBytes      []byte
		currentLine        string
		currentLineNumber  int
		currentSectionName string
		optionName         string
	)

	if "-" == confFilePath {
		confFileBytes, err = ioutil.ReadAll(os.Stdin)
	} else {
		confFileBytes, err = ioutil.ReadFile(confFilePath)
	}
	if nil != err {
		return
	}

	for _, currentLine = range strings.Split(string(confFileBytes), "\n") {
		currentLineNumber++

		currentLine = strings.Trim(currentLine, " \t\r")

		if (0 == len(currentLine)) || ('#' == currentLine[0]) || (';' == currentLine[0]) {
			continue
		}

		if '[' == currentLine[0] {
			matches := sectionHeaderLineRE.FindStringSubmatch(currentLine)
			if nil == matches {
				err = fmt.Errorf("file %v line %v malformed section header '%v'", confFilePath, currentLineNumber, currentLine)
				return
			}
			currentSectionName = matches[1]
			continue
		}

		if "" == currentSectionName {
			err = fmt.Errorf("file %v did not start with a Section Name", confFilePath)
			return
		}

		assignmentIndex = strings.IndexAny(currentLine, "=:")
		if 0 > assignmentIndex {
			err = fmt.Errorf("file %v line %v malformed line '%v'", confFilePath, currentLineNumber, currentLine)
			return
		}

		optionName = strings.Trim(currentLine[:assignmentIndex], " \t")
		if !nameRE.MatchString(optionName) {
			err = fmt.Errorf("file %v line %v malformed option name '%v'", confFilePath, currentLineNumber, optionName)
			return
		}

		confMap.setOption(currentSectionName, optionName, splitOptionValues(currentLine[assignmentIndex+1:]))
	}

	err = nil
	return
}

// VerifyOptionIsMissing returns an error if [sectionName]optionName exists
func (confMap ConfMap) VerifyOptionIsMissing(sectionName string, optionName string) (err error) {
	section, ok := confMap[sectionName]
	if !ok {
		err = nil
		return
	}

	_, ok = section[optionName]
	if ok {
		err = fmt.Errorf("[%v]%v exists", sectionName, optionName)
	} else {
		err = nil
	}

	return
}

// VerifyOptionValueIsEmpty returns an error if [sectionName]optionName's string value is not empty
func (confMap ConfMap) VerifyOptionValueIsEmpty(sectionName string, optionName string) (err error) {
	optionValue, err := confMap.FetchOptionValueStringSlice(sectionName, optionName)
	if nil != err {
		return
	}

	if 0 != len(optionValue) {
		err = fmt.Errorf("[%v]%v must have no value", sectionName, optionName)
	}

	return
}

// FetchOptionValueStringSlice returns [sectionName]optionName's string values as a []string
func (confMap ConfMap) FetchOptionValueStringSlice(sectionName string, optionName string) (optionValue []string, err error) {
	optionValue = []string{}

	section, ok := confMap[sectionName]
	if !ok {
		err = fmt.Errorf("[%v] missing", sectionName)
		return
	}

	option, ok := section[optionName]
	if !ok {
		err = fmt.Errorf("[%v]%v missing", sectionName, optionName)
		return
	}

	optionValue = option

	return
}

// FetchOptionValueString returns [sectionName]optionName's single string value
func (confMap ConfMap) FetchOptionValueString(sectionName string, optionName string) (optionValue string, err error) {
	optionValue = ""

	optionValueSlice, err := confMap.FetchOptionValueStringSlice(sectionName, optionName)
	if nil != err {
		return
	}

	if 1 != len(optionValueSlice) {
		err = fmt.Errorf("[%v]%v must be single-valued", sectionName, optionName)
		return
	}

	optionValue = optionValueSlice[0]

	err = nil
	return
}

// FetchOptionValuePath returns [sectionName]optionName's values rejoined with
// commas, so a file system path containing "," survives the value split
//
// An empty option yields "". Whitespace around a comma inside the path and
// empty comma separated pieces are not preserved.
//
func (confMap ConfMap) FetchOptionValuePath(sectionName string, optionName string) (optionValue string, err error) {
	optionValueSlice, err := confMap.FetchOptionValueStringSlice(sectionName, optionName)
	if nil != err {
		optionValue = ""
		return
	}

	optionValue = strings.Join(optionValueSlice, ",")

	return
}

// FetchOptionValueBool returns [sectionName]optionName's single string value converted to a bool
func (confMap ConfMap) FetchOptionValueBool(sectionName string, optionName string) (optionValue bool, err error) {
	optionValueString, err := confMap.FetchOptionValueString(sectionName, optionName)
	if nil != err {
		return
	}

	switch strings.ToLower(optionValueString) {
	case "yes", "on", "true":
		optionValue = true
	case "no", "off", "false":
		optionValue = false
	default:
		err = fmt.Errorf("[%v]%v is not a bool", sectionName, optionName)
	}

	return
}

// FetchOptionValueUint32 returns [sectionName]optionName's single string value converted to a uint32
func (confMap ConfMap) FetchOptionValueUint32(sectionName string, optionName string) (optionValue uint32, err error) {
	optionValueUint64, err := confMap.fetchOptionValueUint(sectionName, optionName, 32)
	if nil != err {
		return
	}

	optionValue = uint32(optionValueUint64)

	return
}

// FetchOptionValueUint64 returns [sectionName]optionName's single string value converted to a uint64
func (confMap ConfMap) FetchOptionValueUint64(sectionName string, optionName string) (optionValue uint64, err error) {
	optionValue, err = confMap.fetchOptionValueUint(sectionName, optionName, 64)
	return
}

func (confMap ConfMap) fetchOptionValueUint(sectionName string, optionName string, bitSize int) (optionValue uint64, err error) {
	optionValueString, err := confMap.FetchOptionValueString(sectionName, optionName)
	if nil != err {
		return
	}

	optionValue, err = strconv.ParseUint(optionValueString, 10, bitSize)
	if nil != err {
		err = fmt.Errorf("[%v]%v is not a uint%d: %v", sectionName, optionName, bitSize, err)
		return
	}

	return
}

// FetchOptionValueDuration returns [sectionName]optionName's single string value converted to a time.Duration
func (confMap ConfMap) FetchOptionValueDuration(sectionName string, optionName string) (optionValue time.Duration, err error) {
	optionValueString, err := confMap.FetchOptionValueString(sectionName, optionName)
	if nil != err {
		return
	}

	optionValue, err = time.ParseDuration(optionValueString)
	if nil != err {
		return
	}

	if 0 > optionValue {
		err = fmt.Errorf("[%v]%v is negative", sectionName, optionName)
		return
	}

	return
}

// Strings returns the ConfMap as a sorted list of <section_name>.<option_name>=<values> strings
//
// Feeding the result to MakeConfMapFromStrings() reproduces the ConfMap.
//
func (confMap ConfMap) Strings() (confStrings []string) {
	confStrings = make([]string, 0)

	for sectionName, section := range confMap {
		for optionName, option := range section {
			confStrings = append(confStrings, sectionName+"."+optionName+"="+strings.Join(option, ","))
		}
	}

	sort.Strings(confStrings)

	return
}
