package server

const homePage = `<!doctype html>
<html lang="en">
<head>
  <meta charset="utf-8">
  <title>Document Layout Analysis</title>
  <meta name="viewport" content="width=device-width, initial-scale=1">
  <style>
    body { background:#0b1020; color:#e9eefb; font-family:Inter,Segoe UI,Arial,sans-serif; margin:0; }
    .wrap { max-width:880px; margin:64px auto; padding:0 20px; }
    .card { background:#131a2b; border:1px solid rgba(255,255,255,0.09); border-radius:20px; padding:28px; }
    h1 { margin:0 0 12px 0; font-size:28px; }
    p { color:#b8c2e0; line-height:1.6; }
    code { background:#0d1326; color:#dfe7ff; padding:2px 6px; border-radius:6px; }
    a { color:#5aa9ff; }
  </style>
</head>
<body>
  <div class="wrap">
    <div class="card">
      <h1>Document Layout Analysis</h1>
      <p>
        Pre-annotation API: upload a page image and get layout boxes back as JSON,
        an annotated PNG or YOLO label lines.
      </p>
      <p><a href="/health">Health</a> &middot; <a href="/docs">Swagger UI</a> &middot; <a href="/redoc">ReDoc</a> &middot; <a href="/openapi.json">OpenAPI</a></p>
      <ul>
        <li><code>POST /infer</code> &rarr; JSON regions</li>
        <li><code>POST /infer_image</code> &rarr; annotated PNG</li>
        <li><code>POST /infer_yolo_txt</code> &rarr; YOLO lines <code>cls cx cy w h</code></li>
        <li><code>POST /postprocess</code> &rarr; filter and layout rules for external detections</li>
      </ul>
    </div>
  </div>
</body>
</html>
`

// swaggerPage renders /openapi.json with Swagger UI from the jsDelivr CDN.
const swaggerPage = `<!doctype html>
<html lang="en">
<head>
  <meta charset="utf-8">
  <title>Document Layout Analysis - Swagger UI</title>
  <link rel="stylesheet" href="https://cdn.jsdelivr.net/npm/swagger-ui-dist@5/swagger-ui.css">
</head>
<body>
  <div id="swagger-ui"></div>
  <script src="https://cdn.jsdelivr.net/npm/swagger-ui-dist@5/swagger-ui-bundle.js"></script>
  <script>
    window.ui = SwaggerUIBundle({ url: "/openapi.json", dom_id: "#swagger-ui" });
  </script>
</body>
</html>
`

// redocPage renders /openapi.json with ReDoc.
const redocPage = `<!doctype html>
<html lang="en">
<head>
  <meta charset="utf-8">
  <title>Document Layout Analysis - ReDoc</title>
  <meta name="viewport" content="width=device-width, initial-scale=1">
</head>
<body>
  <redoc spec-url="/openapi.json"></redoc>
  <script src="https://cdn.jsdelivr.net/npm/redoc@2/bundles/redoc.standalone.js"></script>
</body>
</html>
`

const openAPIDocument = `{
  "openapi": "3.0.3",
  "info": {
    "title": "Document Layout Analysis",
    "version": "1.0.0",
    "description": "Layout detection with per-class confidence filtering and layout rules."
  },
  "paths": {
    "/health": {
      "get": {
        "tags": ["Health"],
        "summary": "Health check and loaded model",
        "responses": {
          "200": {"description": "Service ready", "content": {"application/json": {"schema": {"$ref": "#/components/schemas/Health"}}}},
          "503": {"description": "Model service unreachable", "content": {"application/json": {"schema": {"$ref": "#/components/schemas/Health"}}}}
        }
      }
    },
    "/infer": {
      "post": {
        "tags": ["Inference"],
        "summary": "Inference to JSON",
        "requestBody": {"$ref": "#/components/requestBodies/Upload"},
        "responses": {
          "200": {"description": "Final regions", "content": {"application/json": {"schema": {"$ref": "#/components/schemas/PredictResponse"}}}},
          "400": {"$ref": "#/components/responses/Error"},
          "413": {"$ref": "#/components/responses/Error"},
          "422": {"$ref": "#/components/responses/Error"},
          "502": {"$ref": "#/components/responses/Error"}
        }
      }
    },
    "/infer_image": {
      "post": {
        "tags": ["Inference"],
        "summary": "Inference to annotated PNG",
        "requestBody": {"$ref": "#/components/requestBodies/Upload"},
        "responses": {
          "200": {"description": "Annotated image", "content": {"image/png": {"schema": {"type": "string", "format": "binary"}}}},
          "400": {"$ref": "#/components/responses/Error"},
          "502": {"$ref": "#/components/responses/Error"}
        }
      }
    },
    "/infer_yolo_txt": {
      "post": {
        "tags": ["Inference"],
        "summary": "Inference to YOLO label lines",
        "requestBody": {"$ref": "#/components/requestBodies/Upload"},
        "responses": {
          "200": {"description": "One 'cls cx cy w h' line per region", "content": {"text/plain": {"schema": {"type": "string"}}}},
          "400": {"$ref": "#/components/responses/Error"},
          "502": {"$ref": "#/components/responses/Error"}
        }
      }
    },
    "/postprocess": {
      "post": {
        "tags": ["Post-processing"],
        "summary": "Filter and layout rules for raw detections",
        "requestBody": {"required": true, "content": {"application/json": {"schema": {"$ref": "#/components/schemas/PostprocessRequest"}}}},
        "responses": {
          "200": {"description": "Final regions", "content": {"application/json": {"schema": {"$ref": "#/components/schemas/PredictResponse"}}}},
          "400": {"$ref": "#/components/responses/Error"},
          "422": {"$ref": "#/components/responses/Error"}
        }
      }
    }
  },
  "components": {
    "requestBodies": {
      "Upload": {
        "required": true,
        "content": {
          "multipart/form-data": {
            "schema": {
              "type": "object",
              "required": ["file"],
              "properties": {
                "file": {"type": "string", "format": "binary"},
                "imgsz": {"type": "integer", "default": 1280},
                "iou": {"type": "number", "default": 0.5},
                "conf_min": {"type": "number", "default": 0.001}
              }
            }
          }
        }
      }
    },
    "responses": {
      "Error": {"description": "Error", "content": {"application/json": {"schema": {"type": "object", "properties": {"error": {"type": "string"}}}}}}
    },
    "schemas": {
      "Health": {
        "type": "object",
        "properties": {
          "status": {"type": "string"},
          "classes": {"type": "array", "items": {"type": "string"}},
          "weights": {"type": "string"},
          "error": {"type": "string"}
        }
      },
      "Detection": {
        "type": "object",
        "properties": {
          "cls_name": {"type": "string"},
          "cls_id": {"type": "integer"},
          "conf": {"type": "number"},
          "x1": {"type": "integer"}, "y1": {"type": "integer"},
          "x2": {"type": "integer"}, "y2": {"type": "integer"},
          "cx": {"type": "number"}, "cy": {"type": "number"},
          "w": {"type": "number"}, "h": {"type": "number"}
        }
      },
      "PredictResponse": {
        "type": "object",
        "properties": {
          "width": {"type": "integer"},
          "height": {"type": "integer"},
          "detections": {"type": "array", "items": {"$ref": "#/components/schemas/Detection"}}
        }
      },
      "RawDetection": {
        "type": "object",
        "properties": {
          "cls_id": {"type": "integer"},
          "conf": {"type": "number"},
          "x1": {"type": "number"}, "y1": {"type": "number"},
          "x2": {"type": "number"}, "y2": {"type": "number"}
        }
      },
      "PostprocessRequest": {
        "type": "object",
        "properties": {
          "width": {"type": "integer"},
          "height": {"type": "integer"},
          "detections": {"type": "array", "items": {"$ref": "#/components/schemas/RawDetection"}}
        }
      }
    }
  }
}
`
