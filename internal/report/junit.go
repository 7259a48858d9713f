package report

import (
	"encoding/xml"
	"fmt"

	"github.com/xdung24/restload/internal/runner"
)

// JUnitTestSuites is the root element of a JUnit report.
type JUnitTestSuites struct {
	XMLName    xml.Name         `xml:"testsuites"`
	TestSuites []JUnitTestSuite `xml:"testsuite"`
}

// JUnitTestSuite holds one scenario run.
type JUnitTestSuite struct {
	Name      string          `xml:"name,attr"`
	Tests     int             `xml:"tests,attr"`
	Failures  int             `xml:"failures,attr"`
	Errors    int             `xml:"errors,attr"`
	Time      float64         `xml:"time,attr"`
	Timestamp string          `xml:"timestamp,attr"`
	TestCases []JUnitTestCase `xml:"testcase"`
	SystemOut string          `xml:"system-out,omitempty"`
}

// JUnitTestCase is one threshold expression.
type JUnitTestCase struct {
	Name      string        `xml:"name,attr"`
	Classname string        `xml:"classname,attr"`
	Time      float64       `xml:"time,attr"`
	Failure   *JUnitFailure `xml:"failure,omitempty"`
	SystemOut string        `xml:"system-out,omitempty"`
}

// JUnitFailure describes why a threshold failed.
type JUnitFailure struct {
	Message string `xml:"message,attr"`
	Type    string `xml:"type,attr"`
	Content string `xml:",chardata"`
}

// JUnit renders the threshold results of r as JUnit XML: one test case per
// expression, classed by its metric selector. An interrupted run is reported
// as a suite error.
func JUnit(r *runner.Result) ([]byte, error) {
	if r == nil {
		return nil, fmt.Errorf("result cannot be nil")
	}

	suite := JUnitTestSuite{
		Name:      r.Scenario,
		Time:      r.Duration.Seconds(),
		Timestamp: r.StartTime.Format("2006-01-02T15:04:05"),
	}

	for _, t := range r.Thresholds {
		tc := JUnitTestCase{
			Name:      t.Expression,
			Classname: t.Selector,
		}
		switch {
		case !t.Passed:
			suite.Failures++
			tc.Failure = &JUnitFailure{
				Message: t.Message,
				Type:    "ThresholdFailure",
				Content: fmt.Sprintf("%s %s: observed %g", t.Selector, t.Expression, t.Value),
			}
		case t.NoData:
			tc.SystemOut = "no samples matched this selector"
		default:
			tc.SystemOut = fmt.Sprintf("observed %g", t.Value)
		}
		suite.TestCases = append(suite.TestCases, tc)
	}
	suite.Tests = len(suite.TestCases)

	if r.Interrupted {
		suite.Errors = 1
		suite.SystemOut = "run was interrupted before the schedule completed"
	}

	output, err := xml.MarshalIndent(JUnitTestSuites{TestSuites: []JUnitTestSuite{suite}}, "", "  ")
	if err != nil {
		return nil, err
	}
	return append([]byte(xml.Header), output...), nil
}
