// Package logging contains helpers to write leveled messages to the system logger.
package logging

import "log"

// PrintlnInfo prints the given message with the INFO prefix.
func PrintlnInfo(logger *log.Logger, v ...interface{}) {
	logger.Println(append([]interface{}{"INFO:"}, v...)...)
}

// PrintlnWarn prints the given message with the WARN prefix.
func PrintlnWarn(logger *log.Logger, v ...interface{}) {
	logger.Println(append([]interface{}{"WARN:"}, v...)...)
}

// PrintlnError prints the given message with the ERROR prefix.
func PrintlnError(logger *log.Logger, v ...interface{}) {
	logger.Println(append([]interface{}{"ERROR:"}, v...)...)
}
