package app

import "go.opentelemetry.io/otel"

const scopeName = "tutor-client/internal/app"

var tracer = otel.Tracer(scopeName)
