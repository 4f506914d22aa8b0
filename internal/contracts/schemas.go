package contracts

// JSON schema documents for the three control/worker contracts. Kept as
// package constants so the binary is self-contained.

const stateSchemaDoc = `{
  "$schema": "https://json-schema.org/draft/2020-12/schema",
  "title": "wdib device state",
  "type": "object",
  "required": [
    "schema_version", "device_id", "awoke_on", "day", "purpose", "status",
    "tasks", "hardware_requests", "incidents", "artifacts", "last_summary"
  ],
  "properties": {
    "schema_version": {"const": "1.0"},
    "device_id": {"type": "string", "minLength": 1},
    "awoke_on": {"type": "string", "pattern": "^\\d{4}-\\d{2}-\\d{2}$"},
    "day": {"type": "integer", "minimum": 0},
    "purpose": {
      "type": "object",
      "required": ["becoming", "mission_path"],
      "properties": {
        "becoming": {"type": "string"},
        "mission_path": {"type": "string"}
      }
    },
    "status": {"enum": ["ACTIVE", "BLOCKED_HARDWARE", "ERROR", "TERMINATED"]},
    "tasks": {
      "type": "array",
      "items": {
        "type": "object",
        "required": ["id", "title", "status", "created_on", "updated_on"],
        "properties": {
          "id": {"type": "string", "minLength": 1},
          "title": {"type": "string", "minLength": 1},
          "description": {"type": "string"},
          "status": {"enum": ["TODO", "IN_PROGRESS", "DONE", "BLOCKED"]},
          "blocked_by": {"type": "string"},
          "created_on": {"type": "string"},
          "updated_on": {"type": "string"},
          "completed_on": {"type": ["string", "null"]},
          "defer_until": {"type": ["string", "null"]},
          "defer_reason": {"type": "string"},
          "selection_streak": {"type": "integer", "minimum": 0},
          "notes": {"type": "string"}
        }
      }
    },
    "hardware_requests": {
      "type": "array",
      "items": {
        "type": "object",
        "required": ["id", "name", "reason", "status", "detection"],
        "properties": {
          "id": {"type": "string", "minLength": 1},
          "name": {"type": "string", "minLength": 1},
          "reason": {"type": "string"},
          "status": {"enum": ["OPEN", "DETECTED", "VERIFIED", "FAILED"]},
          "detection": {
            "type": "object",
            "required": ["kind", "value"],
            "properties": {
              "kind": {"enum": ["path_exists", "glob_exists", "command_success", "lsusb_contains"]},
              "value": {"type": "string", "minLength": 1}
            }
          },
          "verify_command": {"type": "string"},
          "requested_on": {"type": "string"},
          "last_checked_on": {"type": ["string", "null"]},
          "detected_on": {"type": ["string", "null"]},
          "verified_on": {"type": ["string", "null"]},
          "verify_failures": {"type": "integer", "minimum": 0},
          "notes": {"type": "string"}
        }
      }
    },
    "incidents": {
      "type": "array",
      "items": {
        "type": "object",
        "required": ["id", "title", "status", "severity", "summary"],
        "properties": {
          "id": {"type": "string", "minLength": 1},
          "title": {"type": "string", "minLength": 1},
          "status": {"enum": ["OPEN", "RESOLVED"]},
          "severity": {"enum": ["LOW", "MEDIUM", "HIGH"]},
          "summary": {"type": "string"},
          "created_on": {"type": "string"},
          "updated_on": {"type": "string"}
        }
      }
    },
    "artifacts": {
      "type": "array",
      "items": {
        "type": "object",
        "required": ["path", "description"],
        "properties": {
          "path": {"type": "string", "minLength": 1},
          "description": {"type": "string"},
          "created_on": {"type": "string"}
        }
      }
    },
    "last_summary": {"type": "string"}
  }
}`

const workOrderSchemaDoc = `{
  "$schema": "https://json-schema.org/draft/2020-12/schema",
  "title": "wdib work order",
  "type": "object",
  "required": [
    "schema_version", "cycle_id", "created_on", "device_id", "objective",
    "constraints", "allowed_paths", "context", "result_path",
    "result_schema_version"
  ],
  "properties": {
    "schema_version": {"const": "1.0"},
    "cycle_id": {"type": "string", "minLength": 1},
    "created_on": {"type": "string", "minLength": 1},
    "device_id": {"type": "string", "minLength": 1},
    "objective": {"type": "string", "minLength": 1},
    "constraints": {"type": "array", "items": {"type": "string"}},
    "allowed_paths": {"type": "array", "items": {"type": "string"}},
    "context": {
      "type": "object",
      "required": ["becoming", "mission_excerpt", "tasks", "hardware_requests", "incidents"],
      "properties": {
        "becoming": {"type": "string"},
        "mission_excerpt": {"type": "string"},
        "tasks": {
          "type": "array",
          "items": {
            "type": "object",
            "required": ["id", "title", "status"],
            "properties": {
              "id": {"type": "string"},
              "title": {"type": "string"},
              "status": {"type": "string"}
            }
          }
        },
        "hardware_requests": {
          "type": "array",
          "items": {
            "type": "object",
            "required": ["id", "name", "status"],
            "properties": {
              "id": {"type": "string"},
              "name": {"type": "string"},
              "status": {"type": "string"}
            }
          }
        },
        "incidents": {
          "type": "array",
          "items": {
            "type": "object",
            "required": ["id", "title", "status"],
            "properties": {
              "id": {"type": "string"},
              "title": {"type": "string"},
              "status": {"type": "string"}
            }
          }
        }
      }
    },
    "result_path": {"type": "string", "minLength": 1},
    "result_schema_version": {"const": "1.0"}
  }
}`

const workerResultSchemaDoc = `{
  "$schema": "https://json-schema.org/draft/2020-12/schema",
  "title": "wdib worker result",
  "type": "object",
  "required": ["schema_version", "cycle_id", "status", "summary"],
  "properties": {
    "schema_version": {"const": "1.0"},
    "cycle_id": {"type": "string", "minLength": 1},
    "status": {"enum": ["COMPLETED", "BLOCKED", "FAILED"]},
    "summary": {"type": "string", "minLength": 1},
    "becoming": {"type": "string"},
    "proposed_tasks": {
      "type": "array",
      "items": {
        "type": "object",
        "required": ["title"],
        "properties": {
          "title": {"type": "string", "minLength": 1},
          "description": {"type": "string"},
          "status": {"enum": ["TODO", "IN_PROGRESS", "DONE", "BLOCKED"]},
          "blocked_by": {"type": "string"},
          "notes": {"type": "string"}
        }
      }
    },
    "task_updates": {
      "type": "array",
      "items": {
        "type": "object",
        "required": ["task_id"],
        "properties": {
          "task_id": {"type": "string", "minLength": 1},
          "status": {"enum": ["TODO", "IN_PROGRESS", "DONE", "BLOCKED"]},
          "defer_until": {"type": ["string", "null"]},
          "defer_reason": {"type": ["string", "null"]},
          "note": {"type": "string"}
        }
      }
    },
    "proposed_hardware_requests": {
      "type": "array",
      "items": {
        "type": "object",
        "required": ["name", "reason", "detection"],
        "properties": {
          "name": {"type": "string", "minLength": 1},
          "reason": {"type": "string", "minLength": 1},
          "detection": {
            "type": "object",
            "required": ["kind", "value"],
            "properties": {
              "kind": {"enum": ["path_exists", "glob_exists", "command_success", "lsusb_contains"]},
              "value": {"type": "string", "minLength": 1}
            }
          },
          "verify_command": {"type": "string"},
          "notes": {"type": "string"}
        }
      }
    },
    "incidents": {
      "type": "array",
      "items": {
        "type": "object",
        "required": ["title", "summary"],
        "properties": {
          "title": {"type": "string", "minLength": 1},
          "summary": {"type": "string"},
          "severity": {"enum": ["LOW", "MEDIUM", "HIGH"]},
          "status": {"enum": ["OPEN", "RESOLVED"]}
        }
      }
    },
    "artifacts": {
      "type": "array",
      "items": {
        "type": "object",
        "required": ["path", "description"],
        "properties": {
          "path": {"type": "string", "minLength": 1},
          "description": {"type": "string", "minLength": 1}
        }
      }
    }
  }
}`
