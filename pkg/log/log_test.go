package log

import (
	"bufio"
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/suite"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

type LogTestSuite struct {
	suite.Suite
}

func (s *LogTestSuite) TearDownTest() {
	assert.Nil(s.T(), SetLevel("info"))
}

func (s *LogTestSuite) TestLevels() {
	cases := []struct {
		name    string
		level   zapcore.Level
		debug   bool
		info    bool
		warn    bool
		errored bool
	}{
		{"debug", zapcore.DebugLevel, true, true, true, true},
		{"INFO", zapcore.InfoLevel, false, true, true, true},
		{" warn ", zapcore.WarnLevel, false, false, true, true},
		{"error", zapcore.ErrorLevel, false, false, false, true},
		{"panic", zapcore.PanicLevel, false, false, false, false},
	}

	for _, tc := range cases {
		assert.Nil(s.T(), SetLevel(tc.name))
		assert.Equal(s.T(), tc.level, GetLevel())
		assert.Equal(s.T(), tc.debug, capture(Debug, "debug msg", "project", 1) != "", tc.name)
		assert.Equal(s.T(), tc.info, capture(Info, "info msg", "project", 1) != "", tc.name)
		assert.Equal(s.T(), tc.warn, capture(Warn, "warn msg", "project", 1) != "", tc.name)
		assert.Equal(s.T(), tc.errored, capture(Error, "error msg", "project", 1) != "", tc.name)
		assert.Panics(s.T(), func() { Panic("panic msg", "project", 1) })
	}
}

func (s *LogTestSuite) TestKeyValuesEncoded() {
	out := capture(Info, "critical path computed", "project_id", 42, "duration_hours", 12.5)
	assert.Contains(s.T(), out, `"project_id":42`)
	assert.Contains(s.T(), out, `"duration_hours":12.5`)
	assert.Contains(s.T(), out, `"timestamp"`)
}

func (s *LogTestSuite) TestSetLevelRejectsUnknown() {
	assert.NotNil(s.T(), SetLevel("bogus"))
	assert.Nil(s.T(), SetLevel("fatal"))
	assert.Equal(s.T(), zapcore.FatalLevel, GetLevel())
}

func (s *LogTestSuite) TestClean() {
	assert.Equal(s.T(), "hello world", Clean("Hello World\n"))
}

func capture(logFunc func(string, ...interface{}), msg string, kv ...interface{}) string {
	var buffer bytes.Buffer

	oldLogger := zap.S()

	writer := bufio.NewWriter(&buffer)

	zap.ReplaceGlobals(zap.New(
		zapcore.NewCore(
			zapcore.NewJSONEncoder(config()),
			zapcore.AddSync(writer),
			logLevel,
		),
	))

	logFunc(msg, kv...)
	if err := writer.Flush(); err != nil {
		panic(err)
	}

	zap.ReplaceGlobals(oldLogger.Desugar())

	return buffer.String()
}

func TestLogTestSuite(t *testing.T) {
	suite.Run(t, new(LogTestSuite))
}
