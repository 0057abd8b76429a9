// Copyright (c) 2015-2021, NVIDIA CORPORATION.
// SPDX-License-Identifier: Apache-2.0

package logger

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"sort"
	"strings"
	"sync"

	log "github.com/sirupsen/logrus"

	"github.com/NVIDIA/traveler/conf"
)

// TimestampFormat is the layout of the leading timestamp on every log line
const TimestampFormat = "2006-01-02 15:04:05"

var (
	logFile      *os.File = nil
	outputWriter *multiWriter
)

// travelerFormatter renders an entry as:
//
//   YYYY-MM-DD HH:MM:SS - LEVEL - message [key=value ...]
//
type travelerFormatter struct{}

func levelName(level log.Level) string {
	switch level {
	case log.PanicLevel:
		return "CRITICAL"
	case log.FatalLevel:
		return "CRITICAL"
	case log.ErrorLevel:
		return "ERROR"
	case log.WarnLevel:
		return "WARNING"
	case log.InfoLevel:
		return "INFO"
	default:
		return "DEBUG"
	}
}

func (formatter *travelerFormatter) Format(entry *log.Entry) (formatted []byte, err error) {
	var (
		buf  bytes.Buffer
		keys []string
	)

	buf.WriteString(entry.Time.Format(TimestampFormat))
	buf.WriteString(" - ")
	buf.WriteString(levelName(entry.Level))
	buf.WriteString(" - ")
	buf.WriteString(strings.TrimRight(entry.Message, "\n"))

	keys = make([]string, 0, len(entry.Data))
	for key := range entry.Data {
		keys = append(keys, key)
	}
	sort.Strings(keys)

	for _, key := range keys {
		fmt.Fprintf(&buf, " %s=%q", key, fmt.Sprint(entry.Data[key]))
	}

	buf.WriteByte('\n')

	formatted = buf.Bytes()
	err = nil
	return
}

// multiWriter fans each log line out to every registered writer
type multiWriter struct {
	sync.Mutex
	writers []io.Writer
}

func (mw *multiWriter) addWriter(writer io.Writer) {
	mw.Lock()
	mw.writers = append(mw.writers, writer)
	mw.Unlock()
}

func (mw *multiWriter) Write(p []byte) (n int, err error) {
	mw.Lock()
	defer mw.Unlock()

	for _, writer := range mw.writers {
		n, err = writer.Write(p)
		if nil != err {
			return
		}
	}

	n = len(p)
	err = nil
	return
}

func addLogTarget(writer io.Writer) {
	if nil == outputWriter {
		outputWriter = &multiWriter{}
		outputWriter.addWriter(os.Stderr)
		log.SetOutput(outputWriter)
	}
	outputWriter.addWriter(writer)
}

// Up configures logging from the [Logging] section of confMap
//
// Recognized options (all optional):
//
//   LogFilePath:  file appended to (created if missing)
//   LogToConsole: also write to stderr (default true when LogFilePath is empty)
//   TraceEnabled: emit Trace*() lines (default false)
//
func Up(confMap conf.ConfMap) (err error) {
	var (
		logFilePath  string
		logToConsole bool
	)

	log.SetFormatter(&travelerFormatter{})
	log.SetLevel(log.DebugLevel)

	if nil == confMap.VerifyOptionIsMissing("Logging", "LogFilePath") {
		logFilePath = ""
	} else {
		logFilePath, err = confMap.FetchOptionValuePath("Logging", "LogFilePath")
		if nil != err {
			return
		}
	}

	if nil == confMap.VerifyOptionIsMissing("Logging", "LogToConsole") {
		logToConsole = ("" == logFilePath)
	} else {
		logToConsole, err = confMap.FetchOptionValueBool("Logging", "LogToConsole")
		if nil != err {
			return
		}
	}

	if nil == confMap.VerifyOptionIsMissing("Logging", "TraceEnabled") {
		traceLevelEnabled = false
	} else {
		traceLevelEnabled, err = confMap.FetchOptionValueBool("Logging", "TraceEnabled")
		if nil != err {
			return
		}
	}

	outputWriter = &multiWriter{}

	if "" != logFilePath {
		logFile, err = os.OpenFile(logFilePath, os.O_WRONLY|os.O_CREATE|os.O_APPEND, 0644)
		if nil != err {
			err = fmt.Errorf("couldn't open log file %s: %v", logFilePath, err)
			return
		}
		outputWriter.addWriter(logFile)
	}

	if logToConsole {
		outputWriter.addWriter(os.Stderr)
	}

	log.SetOutput(outputWriter)

	err = nil
	return
}

// Down flushes and closes the log file, if one was opened by Up
func Down() (err error) {
	outputWriter = nil
	log.SetOutput(os.Stderr)

	if nil != logFile {
		err = logFile.Sync()
		_ = logFile.Close()
		logFile = nil
	}

	return
}
